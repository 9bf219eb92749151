// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authn decides whether a request needs authentication and who is
// making it.
//
// ExcludedPaths holds the paths that skip authentication. A Dispatcher
// selects NoAuth, BasicAuth or SessionAuth for each request based on its
// mode and the credential sources present. Middleware combines the two
// for net/http.
package authn
