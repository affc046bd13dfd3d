package main

import (
	"net/url"
	"regexp"
	"strings"
)

var passwordPattern = regexp.MustCompile(`(?i)password=[^\s]+`)

// redactURL masks the password of a connection URL. Unparseable input is
// hidden entirely.
func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[redacted]"
	}
	return u.Redacted()
}

// sanitizeError renders err with every connection URL in dsns masked.
// Drivers echo the DSN back in parse errors, and libpq-style strings leak
// password=... pairs.
func sanitizeError(err error, dsns ...string) string {
	if err == nil {
		return ""
	}

	pairs := make([]string, 0, 2*len(dsns))
	for _, dsn := range dsns {
		if dsn != "" {
			pairs = append(pairs, dsn, redactURL(dsn))
		}
	}
	msg := strings.NewReplacer(pairs...).Replace(err.Error())
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}
