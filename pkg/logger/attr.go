package logger

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

// Error creates an attribute for a single error under the key "error".
// If err is nil, it returns an empty Attr.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// UserID records the user identifier under the key "user_id".
// Nil and empty string ids produce an empty Attr.
func UserID(id any) slog.Attr {
	switch v := id.(type) {
	case nil:
		return slog.Attr{}
	case string:
		if v == "" {
			return slog.Attr{}
		}
	}
	return slog.Any("user_id", id)
}

// RequestID records the request identifier under the key "request_id".
func RequestID(id string) slog.Attr {
	if id == "" {
		return slog.Attr{}
	}
	return slog.String("request_id", id)
}

// Component records the component name under the key "component".
func Component(name string) slog.Attr {
	return slog.String("component", name)
}

// Event records the event name under the key "event".
func Event(name string) slog.Attr {
	return slog.String("event", name)
}

// Provider records the identity provider name under the key "provider".
func Provider(name string) slog.Attr {
	return slog.String("provider", name)
}

// Plugin records the auth plugin key under the key "plugin".
func Plugin(key string) slog.Attr {
	return slog.String("plugin", key)
}

// ClientIP records the caller address under the key "client_ip".
func ClientIP(ip string) slog.Attr {
	return slog.String("client_ip", ip)
}

// Email records an address with the local part masked, e.g. "j***@example.com".
func Email(addr string) slog.Attr {
	local, domain, ok := strings.Cut(addr, "@")
	if !ok || local == "" {
		return slog.String("email", "***")
	}
	_, size := utf8.DecodeRuneInString(local)
	return slog.String("email", local[:size]+"***@"+domain)
}
