// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package credentials decodes HTTP Basic credentials.
//
// Every function reports failure through its boolean result. Malformed and
// absent input are indistinguishable to callers.
package credentials

import (
	"encoding/base64"
	"strings"
	"unicode/utf8"
)

// Scheme is the case-sensitive Authorization prefix, including its single
// trailing space.
const Scheme = "Basic "

// Separator splits the decoded value into email and secret.
const Separator = ":"

// ExtractEncoded returns the part of header after the Basic scheme prefix.
func ExtractEncoded(header string) (string, bool) {
	if !strings.HasPrefix(header, Scheme) {
		return "", false
	}
	return header[len(Scheme):], true
}

// Decode base64-decodes encoded and requires the result to be valid UTF-8.
func Decode(encoded string) (string, bool) {
	if encoded == "" {
		return "", false
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits decoded on the first separator. The secret may
// itself contain the separator.
func SplitCredentials(decoded string) (email, secret string, ok bool) {
	email, secret, ok = strings.Cut(decoded, Separator)
	if !ok {
		return "", "", false
	}
	return email, secret, true
}

// Parse runs ExtractEncoded, Decode and SplitCredentials in sequence.
func Parse(header string) (email, secret string, ok bool) {
	encoded, ok := ExtractEncoded(header)
	if !ok {
		return "", "", false
	}
	decoded, ok := Decode(encoded)
	if !ok {
		return "", "", false
	}
	return SplitCredentials(decoded)
}

// Encode builds an Authorization header value for email and secret.
func Encode(email, secret string) string {
	return Scheme + base64.StdEncoding.EncodeToString([]byte(email+Separator+secret))
}
