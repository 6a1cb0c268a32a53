package secrets

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCache_GetPutExpire(t *testing.T) {
	c := NewCache[string](time.Minute)
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Put("dsn", "postgres://x")
	v, ok := c.Get("dsn")
	require.True(t, ok)
	assert.Equal(t, "postgres://x", v)

	now = now.Add(2 * time.Minute)
	_, ok = c.Get("dsn")
	assert.False(t, ok, "expired entries miss")
	assert.Zero(t, c.Len(), "expired entry removed on read")
}

func TestCache_BustAndSweep(t *testing.T) {
	c := NewCache[int](time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put("a", 1)
	c.Put("b", 2)
	c.Bust("a")
	_, ok := c.Get("a")
	assert.False(t, ok)

	now = now.Add(time.Hour)
	c.sweep()
	assert.Zero(t, c.Len())
}

func TestCache_StartCleanerStops(t *testing.T) {
	c := NewCache[int](time.Millisecond)
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		c.StartCleaner(time.Millisecond, stop)
		close(done)
	}()
	close(stop)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("cleaner did not stop")
	}
}

func TestStaticProvider(t *testing.T) {
	p := StaticProvider{"prod/ted/db": {"dsn": "postgres://ted"}}

	s, err := p.GetSecret(context.Background(), "prod/ted/db")
	require.NoError(t, err)
	assert.Equal(t, "postgres://ted", s["dsn"])

	_, err = p.GetSecret(context.Background(), "missing")
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, "missing", nf.Name)
}

func TestDecodeSecret(t *testing.T) {
	assert.Equal(t, map[string]string{RawValueKey: "plain-dsn"}, decodeSecret("plain-dsn"))
	assert.Equal(t,
		map[string]string{"username": "ted", "port": "5432", "ssl": "true"},
		decodeSecret(`{"username":"ted","port":5432,"ssl":true,"unused":null}`))
}
