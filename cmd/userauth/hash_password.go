// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"bufio"
	"io"
	"strings"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/userauth/internal/auth"
)

// NewHashPasswordCmd creates the hash-password subcommand.
func NewHashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password",
		Short: "Print the argon2id hash of a password read from stdin",
		Long: `Read a password from the first line of stdin and print the argon2id hash
the service would store for it. Useful for seeding users by hand.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			hash, err := hashFromReader(cmd.InOrStdin(), auth.NewArgon2idHasher())
			if err != nil {
				return err
			}
			cmd.Println(hash)
			return nil
		},
	}
}

func hashFromReader(r io.Reader, hasher auth.PasswordHasher) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", oops.Code("PASSWORD_READ_FAILED").Wrap(err)
	}
	secret := strings.TrimRight(line, "\r\n")
	hash, err := hasher.Hash(secret)
	if err != nil {
		return "", err //nolint:wrapcheck // already coded
	}
	return hash, nil
}
