package main

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the minimum password length requirement
	MinPasswordLength = 8
	// BcryptCost is the cost factor for bcrypt hashing (10 = ~100ms)
	BcryptCost = 10
)

var (
	emailRegex  = regexp.MustCompile(`^[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}$`)
	letterRegex = regexp.MustCompile(`[a-zA-Z]`)
	digitRegex  = regexp.MustCompile(`[0-9]`)
)

func newUserCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage API users",
	}
	cmd.AddCommand(newUserCreateCmd(a))
	return cmd
}

func newUserCreateCmd(a *app) *cobra.Command {
	var name, email, password string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an API user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := validateUserInputs(name, email, password); err != nil {
				return fmt.Errorf("validation error: %w", err)
			}

			hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), BcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}

			ctx := cmd.Context()
			st, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer st.Close()

			userID, err := st.CreateUser(ctx, strings.TrimSpace(name), strings.ToLower(strings.TrimSpace(email)), string(hashedPassword))
			if err != nil {
				return err
			}

			fmt.Fprintf(a.out, "Created user %s (%s)\n", userID, email)
			return nil
		},
	}

	cmd.Flags().StringVar(&name, "name", "", "Full name of the user (required)")
	cmd.Flags().StringVar(&email, "email", "", "Email address (required)")
	cmd.Flags().StringVar(&password, "password", "", "Password (required, min 8 chars)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

// validateUserInputs validates user input according to security requirements
func validateUserInputs(name, email, password string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("name is required and cannot be empty")
	}

	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("invalid email format: %s", email)
	}

	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}

	if !letterRegex.MatchString(password) || !digitRegex.MatchString(password) {
		return fmt.Errorf("password must contain at least one letter and one number")
	}

	return nil
}
