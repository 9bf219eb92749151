// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package auth_test

import (
	"errors"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/userauth/internal/auth"
	"github.com/holomush/userauth/internal/store"
)

var _ = Describe("Service on PostgreSQL", func() {
	BeforeEach(func() {
		cleanupUsers(env.ctx, env.pool)
	})

	Describe("Register", func() {
		It("persists a hashed secret and rejects a duplicate email", func() {
			user, err := env.Service.Register(env.ctx, "bob@me.com", "mySuperPwd")
			Expect(err).NotTo(HaveOccurred())
			Expect(user.HashedPassword).NotTo(Equal("mySuperPwd"))

			stored, err := env.Users.FindUserBy(env.ctx, auth.Criteria{auth.AttrEmail: "bob@me.com"})
			Expect(err).NotTo(HaveOccurred())
			Expect(stored.ID).To(Equal(user.ID))
			Expect(stored.SessionID).To(BeNil())
			Expect(stored.ResetToken).To(BeNil())

			_, err = env.Service.Register(env.ctx, "bob@me.com", "other")
			Expect(errors.Is(err, auth.ErrAlreadyExists)).To(BeTrue())
		})

		It("lets exactly one of many concurrent registrations win", func() {
			const workers = 8
			var (
				wg       sync.WaitGroup
				mu       sync.Mutex
				created  int
				rejected int
				other    []error
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()
					_, err := env.Service.Register(env.ctx, "race@me.com", "pwd")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err == nil:
						created++
					case errors.Is(err, auth.ErrAlreadyExists):
						rejected++
					default:
						other = append(other, err)
					}
				}()
			}
			wg.Wait()

			Expect(other).To(BeEmpty())
			Expect(created).To(Equal(1))
			Expect(rejected).To(Equal(workers - 1))

			var count int
			Expect(env.pool.QueryRow(env.ctx,
				"SELECT count(*) FROM users WHERE email = $1", "race@me.com").Scan(&count)).To(Succeed())
			Expect(count).To(Equal(1))
		})
	})

	Describe("sessions", func() {
		BeforeEach(func() {
			_, err := env.Service.Register(env.ctx, "bob@me.com", "pwd")
			Expect(err).NotTo(HaveOccurred())
		})

		It("creates, resolves and destroys a session", func() {
			ok, err := env.Service.VerifyLogin(env.ctx, "bob@me.com", "pwd")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())

			token, ok, err := env.Service.CreateSession(env.ctx, "bob@me.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(token).NotTo(BeEmpty())

			user, ok, err := env.Service.ResolveSession(env.ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			Expect(user.Email).To(Equal("bob@me.com"))

			Expect(env.Service.DestroySession(env.ctx, user.ID)).To(Succeed())

			_, ok, err = env.Service.ResolveSession(env.ctx, token)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("replaces the previous session on a second login", func() {
			first, _, err := env.Service.CreateSession(env.ctx, "bob@me.com")
			Expect(err).NotTo(HaveOccurred())
			second, _, err := env.Service.CreateSession(env.ctx, "bob@me.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(second).NotTo(Equal(first))

			_, ok, err := env.Service.ResolveSession(env.ctx, first)
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("reports no session for an unknown email", func() {
			token, ok, err := env.Service.CreateSession(env.ctx, "nobody@me.com")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
			Expect(token).To(BeEmpty())
		})
	})

	Describe("password reset", func() {
		BeforeEach(func() {
			_, err := env.Service.Register(env.ctx, "bob@me.com", "old")
			Expect(err).NotTo(HaveOccurred())
		})

		It("redeems a reset token exactly once", func() {
			token, err := env.Service.IssueResetToken(env.ctx, "bob@me.com")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.Service.UpdatePassword(env.ctx, token, "new")).To(Succeed())

			err = env.Service.UpdatePassword(env.ctx, token, "newer")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())

			ok, err := env.Service.VerifyLogin(env.ctx, "bob@me.com", "new")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeTrue())
			ok, err = env.Service.VerifyLogin(env.ctx, "bob@me.com", "old")
			Expect(err).NotTo(HaveOccurred())
			Expect(ok).To(BeFalse())
		})

		It("fails for an unknown email", func() {
			_, err := env.Service.IssueResetToken(env.ctx, "nobody@me.com")
			Expect(errors.Is(err, auth.ErrNotFound)).To(BeTrue())
		})
	})
})

var _ = Describe("Migrator", func() {
	It("reports the latest version as applied", func() {
		m, err := store.NewMigrator(env.connStr)
		Expect(err).NotTo(HaveOccurred())
		defer func() { _ = m.Close() }()

		pending, err := m.PendingMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(pending).To(BeEmpty())

		applied, err := m.AppliedMigrations()
		Expect(err).NotTo(HaveOccurred())
		Expect(applied).To(Equal([]uint{1, 2}))
	})
})
