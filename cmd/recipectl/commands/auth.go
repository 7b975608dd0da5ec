package commands

import (
	"errors"

	"recipebox/internal/models"

	"github.com/spf13/cobra"
)

func newSignupCmd(a *app) *cobra.Command {
	var email, password, fullName string
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and sign in",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), false)
			if err != nil {
				return err
			}
			s, err := c.SignUp(cmd.Context(), email, password, fullName)
			if err != nil {
				return err
			}
			return a.signedIn(s)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password (at least 6 characters)")
	cmd.Flags().StringVar(&fullName, "name", "", "Full name shown next to your comments")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newLoginCmd(a *app) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and remember the session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), false)
			if err != nil {
				return err
			}
			s, err := c.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return a.signedIn(s)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (a *app) signedIn(s *models.Session) error {
	if err := a.tokens().Save(s.AccessToken); err != nil {
		return err
	}
	if a.jsonOutput {
		return a.printer().encode(s.User)
	}
	a.printer().success("Signed in as %s (session valid until %s)", s.User.Email, formatExpiry(s.ExpiresAt))
	return nil
}

func newLogoutCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the saved session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), true)
			if errors.Is(err, errNotSignedIn) {
				a.printer().warning("Not signed in")
				return nil
			}
			if err != nil {
				return err
			}
			if err := c.SignOut(cmd.Context()); err != nil {
				return err
			}
			if err := a.tokens().Clear(); err != nil {
				return err
			}
			a.printer().success("Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.client(cmd.Context(), true)
			if err != nil {
				return err
			}
			s := c.Session().Current()
			if a.jsonOutput {
				return a.printer().encode(s.User)
			}
			a.printer().success("%s (%s)", s.User.Email, s.User.ID)
			return nil
		},
	}
}
