// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the credential and session core of userauth.
//
// # Domain Types
//
// A User is created through Service.Register, which hashes the secret
// before anything reaches the store. Stores receive opaque hashes only;
// plaintext secrets never leave this package.
//
// # Services
//
// Service owns every write to the session_id, reset_token and
// hashed_password attributes:
//   - Register - create a user with a hashed secret
//   - VerifyLogin / CheckCredentials - verify an email and secret
//   - CreateSession / ResolveSession / DestroySession - session lifecycle
//   - IssueResetToken / UpdatePassword - password reset flow
//
// Read-modify-write sequences run inside Transactor.InTransaction so
// concurrent callers cannot interleave between the read and the write.
package auth
