// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// dummyPasswordHash is verified when a user doesn't exist so that unknown
// emails and wrong secrets take the same time.
// This is NOT a real credential; it will never match any password.
//
//nolint:gosec // G101: intentionally fake hash for timing attack prevention, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// Service provides registration, login, session and reset operations.
type Service struct {
	users  UserStore
	tx     Transactor
	hasher PasswordHasher
	tokens TokenGenerator
	logger *slog.Logger
}

// NewService creates a new Service.
func NewService(users UserStore, tx Transactor, hasher PasswordHasher, tokens TokenGenerator) (*Service, error) {
	return NewServiceWithLogger(users, tx, hasher, tokens, slog.Default())
}

// NewServiceWithLogger creates a new Service that logs to logger.
func NewServiceWithLogger(
	users UserStore,
	tx Transactor,
	hasher PasswordHasher,
	tokens TokenGenerator,
	logger *slog.Logger,
) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("user store is required")
	}
	if tx == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("transactor is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("password hasher is required")
	}
	if tokens == nil {
		return nil, oops.Code("AUTH_INVALID_CONFIG").Errorf("token generator is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:  users,
		tx:     tx,
		hasher: hasher,
		tokens: tokens,
		logger: logger,
	}, nil
}

// Register creates a user with a hashed secret.
// Returns an error wrapping ErrAlreadyExists if the email is taken.
func (s *Service) Register(ctx context.Context, email, secret string) (*User, error) {
	if email == "" {
		return nil, oops.Code("AUTH_EMAIL_REQUIRED").Errorf("email cannot be empty")
	}

	hash, err := s.hasher.Hash(secret)
	if err != nil {
		return nil, oops.Code("AUTH_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	var user *User
	err = s.tx.InTransaction(ctx, func(ctx context.Context) error {
		_, findErr := s.users.FindUserBy(ctx, Criteria{AttrEmail: email})
		switch {
		case findErr == nil:
			return oops.Code("AUTH_EMAIL_EXISTS").
				With("email", email).
				Wrap(ErrAlreadyExists)
		case !errors.Is(findErr, ErrNotFound):
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "find user by email").
				Wrap(findErr)
		}

		added, addErr := s.users.AddUser(ctx, email, hash)
		if addErr != nil {
			if errors.Is(addErr, ErrAlreadyExists) {
				return oops.Code("AUTH_EMAIL_EXISTS").
					With("email", email).
					Wrap(addErr)
			}
			return oops.Code("AUTH_REGISTER_FAILED").
				With("operation", "add user").
				Wrap(addErr)
		}
		user = added
		return nil
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // already coded inside the transaction
	}
	return user, nil
}

// VerifyLogin reports whether secret is the current secret of the user
// with the given email. Unknown users and wrong secrets both yield false.
func (s *Service) VerifyLogin(ctx context.Context, email, secret string) (bool, error) {
	_, ok, err := s.CheckCredentials(ctx, email, secret)
	return ok, err
}

// CheckCredentials verifies an email and secret and returns the user on
// success. Error is non-nil only on store failure.
func (s *Service) CheckCredentials(ctx context.Context, email, secret string) (*User, bool, error) {
	if email == "" || secret == "" {
		return nil, false, nil
	}

	user, lookupErr := s.users.FindUserBy(ctx, Criteria{AttrEmail: email})

	var targetHash string
	userExists := false
	if lookupErr != nil {
		if !errors.Is(lookupErr, ErrNotFound) {
			return nil, false, oops.Code("AUTH_LOGIN_FAILED").
				With("operation", "find user by email").
				Wrap(lookupErr)
		}
		targetHash = dummyPasswordHash
	} else {
		targetHash = user.HashedPassword
		userExists = true
	}

	// Always verify, even for unknown users.
	valid, verifyErr := s.hasher.Verify(secret, targetHash)
	if verifyErr != nil {
		if userExists {
			s.logger.WarnContext(ctx, "stored password hash is unreadable",
				"user_id", user.ID.String(),
				"error", verifyErr)
		}
		return nil, false, nil
	}

	if !userExists || !valid {
		return nil, false, nil
	}
	return user, true, nil
}

// CreateSession issues a new session token for the user with the given
// email, replacing any prior session. ok is false and nothing is written
// when the user does not exist.
func (s *Service) CreateSession(ctx context.Context, email string) (string, bool, error) {
	if email == "" {
		return "", false, nil
	}

	var token string
	found := true
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindUserBy(ctx, Criteria{AttrEmail: email})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				found = false
				return nil
			}
			return oops.Code("SESSION_CREATE_FAILED").
				With("operation", "find user by email").
				Wrap(err)
		}

		t, err := s.tokens.NewToken()
		if err != nil {
			return oops.Code("SESSION_CREATE_FAILED").
				With("operation", "generate session token").
				Wrap(err)
		}

		if err := s.users.UpdateUser(ctx, user.ID, Fields{AttrSessionID: Set(t)}); err != nil {
			return oops.Code("SESSION_CREATE_FAILED").
				With("operation", "persist session").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
		token = t
		return nil
	})
	if err != nil {
		return "", false, err //nolint:wrapcheck // already coded inside the transaction
	}
	if !found {
		return "", false, nil
	}
	return token, true, nil
}

// ResolveSession returns the user holding token as its session.
// An empty or unknown token yields (nil, false, nil).
func (s *Service) ResolveSession(ctx context.Context, token string) (*User, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	user, err := s.users.FindUserBy(ctx, Criteria{AttrSessionID: token})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, oops.Code("SESSION_RESOLVE_FAILED").
			With("operation", "find user by session").
			Wrap(err)
	}
	return user, true, nil
}

// DestroySession logs the user out. Missing users and users without a
// session are not errors.
func (s *Service) DestroySession(ctx context.Context, userID ulid.ULID) error {
	err := s.users.UpdateUser(ctx, userID, Fields{AttrSessionID: nil})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "clear session").
			With("user_id", userID.String()).
			Wrap(err)
	}
	return nil
}

// IssueResetToken generates and stores a reset token for the user with
// the given email. Returns an error wrapping ErrNotFound if no such user
// exists.
func (s *Service) IssueResetToken(ctx context.Context, email string) (string, error) {
	var token string
	err := s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindUserBy(ctx, Criteria{AttrEmail: email})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("RESET_USER_NOT_FOUND").
					With("email", email).
					Wrap(err)
			}
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "find user by email").
				Wrap(err)
		}

		t, err := s.tokens.NewToken()
		if err != nil {
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "generate reset token").
				Wrap(err)
		}

		if err := s.users.UpdateUser(ctx, user.ID, Fields{AttrResetToken: Set(t)}); err != nil {
			return oops.Code("RESET_REQUEST_FAILED").
				With("operation", "persist reset token").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
		token = t
		return nil
	})
	if err != nil {
		return "", err //nolint:wrapcheck // already coded inside the transaction
	}
	return token, nil
}

// UpdatePassword redeems a reset token: the hash is replaced and the
// token cleared in a single update. Returns an error wrapping ErrNotFound
// if no user holds resetToken.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newSecret string) error {
	if resetToken == "" {
		return oops.Code("RESET_INVALID_TOKEN").Wrap(ErrNotFound)
	}

	hash, err := s.hasher.Hash(newSecret)
	if err != nil {
		return oops.Code("RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	//nolint:wrapcheck // already coded inside the transaction
	return s.tx.InTransaction(ctx, func(ctx context.Context) error {
		user, err := s.users.FindUserBy(ctx, Criteria{AttrResetToken: resetToken})
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return oops.Code("RESET_INVALID_TOKEN").Wrap(err)
			}
			return oops.Code("RESET_FAILED").
				With("operation", "find user by reset token").
				Wrap(err)
		}

		fields := Fields{
			AttrHashedPassword: Set(hash),
			AttrResetToken:     nil,
		}
		if err := s.users.UpdateUser(ctx, user.ID, fields); err != nil {
			return oops.Code("RESET_FAILED").
				With("operation", "replace password").
				With("user_id", user.ID.String()).
				Wrap(err)
		}
		return nil
	})
}
