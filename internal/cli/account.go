package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dentgo-go/internal/notify"
	"dentgo-go/pkg/log"
)

func newLoginCmd(r *runner) *cobra.Command {
	var credential string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with a Google ID token",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if credential == "" {
				return errors.New("--credential is required")
			}
			user, err := app.Auth.LoginWithGoogle(ctx, credential)
			if err != nil {
				notify.Error(app.Notifier, "Login failed: "+messageOf(err))
				return err
			}
			if err := app.Billing.Prefetch(ctx); err != nil {
				log.Debugf("cli: prefetch billing: %v", err)
			}
			notify.Success(app.Notifier, fmt.Sprintf("Signed in as %s", user.Email))
			return nil
		}),
	}
	cmd.Flags().StringVar(&credential, "credential", "", "Google ID token")
	return cmd
}

func newLoginAppleCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "login-apple",
		Short: "Print the Sign in with Apple URL",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Open this URL in your browser to sign in with Apple:")
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), app.Client.AppleLoginURL())
			return nil
		}),
	}
}

func newLogoutCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear local chat state",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			app.Auth.Logout(ctx)
			notify.Info(app.Notifier, "Signed out")
			return nil
		}),
	}
}

func newWhoamiCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and plan",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			user, err := app.RequireUser(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, titleStyle.Render(user.Name))
			_, _ = fmt.Fprintf(out, "Email: %s\n", user.Email)
			_, _ = fmt.Fprintf(out, "Role:  %s\n", user.Role)
			if sub, err := app.Billing.Subscription(ctx); err == nil && sub != nil {
				_, _ = fmt.Fprintf(out, "Plan:  %s\n", sub.Plan)
			}
			return nil
		}),
	}
}

func newDeleteAccountCmd(r *runner) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete-account",
		Short: "Permanently delete your account",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if !yes {
				return errors.New("this deletes your account and chat history, pass --yes to confirm")
			}
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			if err := app.Client.DeleteAccount(ctx); err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			app.Auth.Logout(ctx)
			notify.Success(app.Notifier, "Account deleted")
			return nil
		}),
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm account deletion")
	return cmd
}
