package secrets

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/tenderwatch/ted-adapter/pkg/secrets"
)

// DSNResolver turns a Secrets Manager entry into a Postgres connection string,
// caching the result so rotations are picked up once the TTL lapses.
//
// Accepted secret shapes:
//
//	{"dsn": "postgres://..."}
//	{"username": .., "password": .., "host": .., "port": .., "dbname": ..}  (RDS style)
//	"postgres://..."                                                       (plain string)
type DSNResolver struct {
	logger   *zap.Logger
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[string]
}

// NewDSNResolver builds a resolver over provider and cache.
func NewDSNResolver(logger *zap.Logger, provider pkgsecrets.Provider, cache *pkgsecrets.Cache[string]) *DSNResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DSNResolver{logger: logger, provider: provider, cache: cache}
}

// Resolve returns the DSN stored under secretName.
func (r *DSNResolver) Resolve(ctx context.Context, secretName string) (string, error) {
	key := strings.ToLower(secretName)
	if dsn, ok := r.cache.Get(key); ok {
		return dsn, nil
	}

	values, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed", zap.String("secret", secretName), zap.Error(err))
		return "", fmt.Errorf("resolve dsn %q: %w", secretName, err)
	}

	dsn, err := BuildDSN(values)
	if err != nil {
		return "", fmt.Errorf("parse secret %q: %w", secretName, err)
	}
	r.cache.Put(key, dsn)

	r.logger.Info("secrets.dsn_resolved", zap.String("secret", secretName))
	return dsn, nil
}

// BuildDSN assembles a postgres:// URL from a decoded secret.
func BuildDSN(values map[string]string) (string, error) {
	if dsn := values["dsn"]; dsn != "" {
		return dsn, nil
	}
	if raw := values[pkgsecrets.RawValueKey]; raw != "" {
		return raw, nil
	}

	user, host := values["username"], values["host"]
	if user == "" || host == "" {
		return "", fmt.Errorf("secret needs dsn or username+host")
	}
	if port := values["port"]; port != "" {
		host += ":" + port
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(user, values["password"]),
		Host:   host,
		Path:   "/" + firstNonEmpty(values["dbname"], values["dbInstanceIdentifier"], "postgres"),
	}
	if ssl := values["sslmode"]; ssl != "" {
		u.RawQuery = url.Values{"sslmode": {ssl}}.Encode()
	}
	return u.String(), nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
