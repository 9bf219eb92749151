// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package logging

import (
	"log/slog"
	"regexp"
	"strings"
)

// Redaction replaces redacted values.
const Redaction = "***"

// DefaultRedactKeys are the attribute keys masked when Options.RedactKeys
// is nil.
var DefaultRedactKeys = []string{"password", "secret", "reset_token", "session_id"}

// Redact masks the value of each `field=value` pair in message, where a
// value runs up to the next separator character or the end of message.
// It is a pure text substitution.
func Redact(fields []string, redaction, message, separator string) string {
	value := ".+"
	if separator != "" {
		// '-' is literal outside a class, so QuoteMeta leaves it alone.
		value = "[^" + strings.ReplaceAll(regexp.QuoteMeta(separator), "-", `\-`) + "]+"
	}
	for _, field := range fields {
		if field == "" {
			continue
		}
		re := regexp.MustCompile(regexp.QuoteMeta(field) + "=" + value)
		message = re.ReplaceAllLiteralString(message, field+"="+redaction)
	}
	return message
}

// RedactAttrs returns a slog ReplaceAttr hook that masks attributes with
// the given keys (case-insensitive) and applies Redact to string values.
func RedactAttrs(keys []string) func(groups []string, a slog.Attr) slog.Attr {
	if len(keys) == 0 {
		return nil
	}
	masked := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		masked[strings.ToLower(k)] = struct{}{}
	}

	return func(_ []string, a slog.Attr) slog.Attr {
		if _, ok := masked[strings.ToLower(a.Key)]; ok {
			return slog.String(a.Key, Redaction)
		}
		if a.Value.Kind() == slog.KindString {
			s := a.Value.String()
			if strings.Contains(s, "=") {
				if r := Redact(keys, Redaction, s, ";"); r != s {
					return slog.String(a.Key, r)
				}
			}
		}
		return a
	}
}
