package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"dentgo-go/internal/notify"
)

func newNotificationsCmd(r *runner) *cobra.Command {
	var seen int64
	cmd := &cobra.Command{
		Use:   "notifications",
		Short: "List notifications or mark one as seen",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			if seen > 0 {
				if err := app.Client.MarkNotificationSeen(ctx, seen); err != nil {
					notify.Error(app.Notifier, messageOf(err))
					return err
				}
				notify.Success(app.Notifier, "Marked as seen")
				return nil
			}

			items, err := app.Client.ListNotifications(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				_, _ = fmt.Fprintln(out, dimStyle.Render("No notifications."))
				return nil
			}
			for _, n := range items {
				marker := "•"
				if n.Seen {
					marker = " "
				}
				_, _ = fmt.Fprintf(out, "%s %-4d %s\n", marker, n.ID, titleStyle.Render(n.Title))
				if n.Body != "" {
					_, _ = fmt.Fprintf(out, "       %s\n", n.Body)
				}
			}
			return nil
		}),
	}
	cmd.Flags().Int64Var(&seen, "seen", 0, "Mark the notification with this id as seen")
	return cmd
}

func newXRayCmd(r *runner) *cobra.Command {
	var patient, file string
	cmd := &cobra.Command{
		Use:   "xray",
		Short: "Upload an X-ray image",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if patient == "" || file == "" {
				return errors.New("--patient and --file are required")
			}
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			f, err := os.Open(file)
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", file, err)
			}
			defer func() { _ = f.Close() }()

			upload, err := app.Client.UploadXRay(ctx, patient, filepath.Base(file), f)
			if err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			notify.Success(app.Notifier, fmt.Sprintf("Uploaded X-ray %d for %s", upload.ID, upload.PatientName))
			if upload.URL != "" {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), upload.URL)
			}
			return nil
		}),
	}
	cmd.Flags().StringVar(&patient, "patient", "", "Patient name")
	cmd.Flags().StringVar(&file, "file", "", "Image file to upload")
	return cmd
}
