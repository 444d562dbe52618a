package logger

import (
	"log/slog"
	"strings"
)

// DefaultRedactedKeys are the credential attributes the auth packages must
// never write in clear.
var DefaultRedactedKeys = []string{
	"password",
	"password_hash",
	"secret",
	"token",
	"access_token",
	"refresh_token",
	"id_token",
	"code",
	"code_verifier",
	"state",
	"session_id",
}

const redactedValue = "[REDACTED]"

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		set[strings.ToLower(k)] = struct{}{}
	}
	return set
}

func redactAttr(keys map[string]struct{}) func([]string, slog.Attr) slog.Attr {
	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := keys[strings.ToLower(a.Key)]; !ok {
			return a
		}
		if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
			return a
		}
		return slog.String(a.Key, redactedValue)
	}
}
