// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn_test

import (
	"context"

	"github.com/holomush/userauth/internal/auth"
)

// fakeService answers credential and session lookups from fixed tables.
type fakeService struct {
	secrets  map[string]string // email -> secret
	sessions map[string]*auth.User
	users    map[string]*auth.User // email -> user
	err      error
	calls    int
}

func (f *fakeService) CheckCredentials(_ context.Context, email, secret string) (*auth.User, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	if want, ok := f.secrets[email]; ok && want == secret {
		return f.users[email], true, nil
	}
	return nil, false, nil
}

func (f *fakeService) ResolveSession(_ context.Context, token string) (*auth.User, bool, error) {
	f.calls++
	if f.err != nil {
		return nil, false, f.err
	}
	u, ok := f.sessions[token]
	return u, ok, nil
}

// fakeRequest is an in-memory authn.Request.
type fakeRequest struct {
	path    string
	headers map[string]string
	cookies map[string]string
}

func (r fakeRequest) Path() string { return r.path }

func (r fakeRequest) Header(name string) (string, bool) {
	v, ok := r.headers[name]
	return v, ok
}

func (r fakeRequest) Cookie(name string) (string, bool) {
	v, ok := r.cookies[name]
	return v, ok
}
