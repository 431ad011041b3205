package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/guardtrack/patrolsync/internal/ui"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with phone number verification",
	Long: `Sign in to the patrol backend.

A one-time code is sent to your phone by SMS; entering it issues the
bearer token used for all sync traffic. The token is stored in the data
directory with owner-only permissions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()

		var phone string
		phoneForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Phone number").
				Description("International format, e.g. +15550100123").
				Value(&phone).
				Validate(validatePhone),
		))
		if err := phoneForm.Run(); err != nil {
			return err
		}
		phone = strings.TrimSpace(phone)

		if err := a.client.RequestCode(ctx, phone); err != nil {
			return err
		}
		fmt.Printf("%s Code sent to %s\n", ui.RenderAccent("→"), phone)

		var code string
		codeForm := huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Verification code").
				Value(&code).
				Validate(func(s string) error {
					if len(strings.TrimSpace(s)) < 4 {
						return fmt.Errorf("code is too short")
					}
					return nil
				}),
		))
		if err := codeForm.Run(); err != nil {
			return err
		}

		tok, err := a.client.VerifyCode(ctx, phone, strings.TrimSpace(code))
		if err != nil {
			return err
		}
		if err := a.tokens.Save(tok); err != nil {
			return err
		}

		fmt.Printf("%s Signed in as guard %s\n", ui.RenderSuccess("✓"), tok.GuardID)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved auth token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.tokens.Clear(); err != nil {
			return err
		}
		fmt.Printf("%s Signed out\n", ui.RenderSuccess("✓"))
		return nil
	},
}

func validatePhone(s string) error {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "+") || len(s) < 8 {
		return fmt.Errorf("enter the number in international format")
	}
	for _, r := range s[1:] {
		if r < '0' || r > '9' {
			return fmt.Errorf("digits only after the leading +")
		}
	}
	return nil
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
