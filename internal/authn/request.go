// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import "net/http"

// Request is the view of an inbound request that authenticators read.
type Request interface {
	Path() string
	Header(name string) (string, bool)
	Cookie(name string) (string, bool)
}

// FromHTTP adapts an *http.Request.
func FromHTTP(r *http.Request) Request {
	return httpRequest{r: r}
}

type httpRequest struct {
	r *http.Request
}

func (h httpRequest) Path() string {
	return h.r.URL.Path
}

func (h httpRequest) Header(name string) (string, bool) {
	values := h.r.Header.Values(name)
	if len(values) == 0 {
		return "", false
	}
	return values[0], true
}

func (h httpRequest) Cookie(name string) (string, bool) {
	c, err := h.r.Cookie(name)
	if err != nil {
		return "", false
	}
	return c.Value, true
}
