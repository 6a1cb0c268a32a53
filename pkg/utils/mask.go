package utils

import (
	"net/url"
	"regexp"
)

var dsnPasswordRegex = regexp.MustCompile(`(:)([^:@/]+)(@)`)

// MaskDSN hides the password of a connection string before it is logged.
// URL-shaped values (postgres://, amqp://, redis://, nats://) are parsed;
// anything else falls back to a ":secret@" pattern replace.
func MaskDSN(dsn string) string {
	if u, err := url.Parse(dsn); err == nil && u.Scheme != "" && u.User != nil {
		return u.Redacted()
	}
	return dsnPasswordRegex.ReplaceAllString(dsn, ":***@")
}
