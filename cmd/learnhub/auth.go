package main

import (
	"github.com/spf13/cobra"

	learnhub "github.com/chimerakang/learnhub-go"
	"github.com/chimerakang/learnhub-go/social"
)

type appFunc func() *app

func loginCommand(get appFunc) *cobra.Command {
	var req learnhub.LoginRequest
	cmd := &cobra.Command{
		Use:   "login",
		Short: "sign in with email and password",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a := get()
			if err := a.manager.Login(c.Context(), req); err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), a.manager.CurrentUser())
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Password, "password", "", "account password")
	return cmd
}

func registerCommand(get appFunc) *cobra.Command {
	var req learnhub.RegisterRequest
	cmd := &cobra.Command{
		Use:   "register",
		Short: "create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}
			a := get()
			if err := a.manager.Register(c.Context(), req); err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), a.manager.CurrentUser())
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.FirstName, "first-name", "", "first name")
	f.StringVar(&req.LastName, "last-name", "", "last name")
	f.StringVar(&req.Email, "email", "", "account email")
	f.StringVar(&req.Password, "password", "", "password")
	f.StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	return cmd
}

func verifyOTPCommand(get appFunc) *cobra.Command {
	var req learnhub.VerifyOTPRequest
	cmd := &cobra.Command{
		Use:   "verify-otp",
		Short: "sign in with a one-time passcode",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a := get()
			if err := a.manager.VerifyOTP(c.Context(), req); err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), a.manager.CurrentUser())
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "account email")
	cmd.Flags().StringVar(&req.Code, "code", "", "passcode")
	return cmd
}

func socialLoginCommand(get appFunc) *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "social-login",
		Short: "sign in with a third-party provider in the browser",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			a := get()
			sc := a.cfg.Social
			if provider != "" {
				sc.Provider = provider
			}
			flow, err := social.FromConfig(sc, social.WithLogger(a.logger.Named("social")))
			if err != nil {
				return err
			}
			req, err := flow.Run(c.Context())
			if err != nil {
				return err
			}
			if err := a.manager.LoginWithSocial(c.Context(), req); err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), a.manager.CurrentUser())
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "provider name sent to the backend (default from LEARNHUB_SOCIAL_PROVIDER)")
	return cmd
}

func logoutCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "sign out and forget the stored token",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			get().manager.Logout(c.Context())
			return nil
		},
	}
}

func whoamiCommand(get appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "print the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			u, err := get().requireUser()
			if err != nil {
				return err
			}
			return printJSON(c.OutOrStdout(), u)
		},
	}
}

func resetPasswordCommand(get appFunc) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "email a password reset link",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			return get().manager.ResetPassword(c.Context(), email)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func confirmResetPasswordCommand(get appFunc) *cobra.Command {
	var req learnhub.ConfirmResetPasswordRequest
	cmd := &cobra.Command{
		Use:   "confirm-reset-password",
		Short: "set a new password with a reset token",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if req.ConfirmPassword == "" {
				req.ConfirmPassword = req.Password
			}
			return get().manager.ConfirmResetPassword(c.Context(), req)
		},
	}
	f := cmd.Flags()
	f.StringVar(&req.Token, "token", "", "reset token from the email")
	f.StringVar(&req.Password, "password", "", "new password")
	f.StringVar(&req.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	return cmd
}
