package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"dentgo-go/internal/chat"
	"dentgo-go/internal/export"
	"dentgo-go/internal/messagestore"
	"dentgo-go/internal/notify"
	"dentgo-go/pkg/apiclient"
)

// navigator 记录当前位置，回到首页时结束 REPL。
type navigator struct {
	location string
	home     bool
}

func (n *navigator) Replace(path string) { n.location = path }

func (n *navigator) Navigate(route string) {
	n.location = route
	n.home = route == chat.RouteHome
}

func newChatCmd(r *runner) *cobra.Command {
	var sessionID int64
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start or continue a chat session",
		Long: `Start an interactive chat. Type a question and press enter.

Commands:
  /end [title]   end the session and return home
  /quit          leave without ending the session`,
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			nav := &navigator{}
			ctrl := chat.NewController(app.Client, app.Messages, app.Billing, nav, app.Notifier, chat.Options{
				FreeMessagesPerDay: int64(app.Config.FreeMessagesPerDay),
			})

			var open *int64
			if sessionID > 0 {
				open = &sessionID
			}
			if err := ctrl.Open(ctx, open); err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}

			out := cmd.OutOrStdout()
			printMessages(out, ctrl.Messages())
			if ctrl.Ended() {
				_, _ = fmt.Fprintln(out, dimStyle.Render("This session has ended."))
			}
			return repl(ctx, cmd.InOrStdin(), out, ctrl, nav)
		}),
	}
	cmd.Flags().Int64Var(&sessionID, "session", 0, "Continue an existing session")
	return cmd
}

func repl(ctx context.Context, in io.Reader, out io.Writer, ctrl *chat.Controller, nav *navigator) error {
	scanner := bufio.NewScanner(in)
	for {
		_, _ = fmt.Fprint(out, userStyle.Render("> "))
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit":
			return nil
		case line == "/end" || strings.HasPrefix(line, "/end "):
			title := strings.TrimSpace(strings.TrimPrefix(line, "/end"))
			if err := ctrl.EndSession(ctx, title); err != nil {
				_, _ = fmt.Fprintln(out, errorStyle.Render("❌ "+messageOf(err)))
				continue
			}
			if nav.home {
				_, _ = fmt.Fprintln(out, dimStyle.Render("Session ended."))
				return nil
			}
			continue
		}

		reply, err := ctrl.Send(ctx, line)
		switch {
		case err == nil:
			printMessage(out, *reply)
		case errors.Is(err, chat.ErrSessionEnded):
			_, _ = fmt.Fprintln(out, dimStyle.Render("This session has ended. Start a new one with `dentgo chat`."))
		case errors.Is(err, chat.ErrDailyLimitReached):
			// 通知器已经提示过
		default:
			msgs := ctrl.Messages()
			if n := len(msgs); n > 0 && msgs[n-1].Error {
				printMessage(out, msgs[n-1])
			}
		}
	}
}

func printMessages(out io.Writer, msgs []messagestore.ChatMessage) {
	for _, m := range msgs {
		printMessage(out, m)
	}
}

func printMessage(out io.Writer, m messagestore.ChatMessage) {
	switch {
	case m.Error:
		_, _ = fmt.Fprintln(out, errorStyle.Render(m.Content))
	case m.Role == messagestore.RoleAssistant:
		_, _ = fmt.Fprintf(out, "%s %s\n", assistantStyle.Render("Dentgo:"), m.Content)
	default:
		_, _ = fmt.Fprintf(out, "%s %s\n", userStyle.Render("You:"), m.Content)
	}
}

func newHistoryCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "List your chat sessions",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			sessions, err := app.Client.ListSessions(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				_, _ = fmt.Fprintln(out, dimStyle.Render("No chat sessions yet."))
				return nil
			}
			for _, s := range sessions {
				status := "open"
				if s.Ended() {
					status = "ended"
				}
				_, _ = fmt.Fprintf(out, "%-6d %-40s %-6s %s\n", s.ID, sessionTitle(s), status, s.StartedAt)
			}
			return nil
		}),
	}
}

func newShowCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			session, err := app.Client.GetSession(ctx, id)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintln(out, titleStyle.Render(sessionTitle(*session)))
			printMessages(out, chat.SessionMessages(session.Messages))
			return nil
		}),
	}
}

func newEndCmd(r *runner) *cobra.Command {
	var title string
	cmd := &cobra.Command{
		Use:   "end <session-id>",
		Short: "End a chat session",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			session, err := app.Client.EndSession(ctx, id, title)
			if err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			notify.Success(app.Notifier, fmt.Sprintf("Session %d ended: %s", session.ID, sessionTitle(*session)))
			return nil
		}),
	}
	cmd.Flags().StringVar(&title, "title", "", "Title to save with the session")
	return cmd
}

func newSearchCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search ended chat sessions",
		Args:  cobra.MinimumNArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			hits, err := app.Client.SearchSessions(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(hits) == 0 {
				_, _ = fmt.Fprintln(out, dimStyle.Render("No matches."))
				return nil
			}
			for _, h := range hits {
				_, _ = fmt.Fprintf(out, "%-6d %s\n", h.SessionID, titleStyle.Render(h.Title))
				if h.Snippet != "" {
					_, _ = fmt.Fprintf(out, "       %s\n", dimStyle.Render(h.Snippet))
				}
			}
			return nil
		}),
	}
}

func newExportCmd(r *runner) *cobra.Command {
	var (
		format    string
		sessionID int64
		outPath   string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a chat transcript",
		Long: `Export a chat transcript as json, yaml or md.

Without --session the current local conversation is exported.`,
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			exporter, err := export.NewExporter(format)
			if err != nil {
				return err
			}

			transcript := &export.Transcript{Messages: app.Messages.Messages()}
			if sessionID > 0 {
				if _, err := app.RequireUser(ctx); err != nil {
					return err
				}
				session, err := app.Client.GetSession(ctx, sessionID)
				if err != nil {
					return err
				}
				id := session.ID
				transcript = &export.Transcript{
					SessionID: &id,
					Title:     sessionTitle(*session),
					Ended:     session.Ended(),
					Messages:  chat.SessionMessages(session.Messages),
				}
			}

			if outPath == "" {
				return exporter.Export(transcript, cmd.OutOrStdout())
			}
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", outPath, err)
			}
			defer func() { _ = f.Close() }()
			if err := exporter.Export(transcript, f); err != nil {
				return err
			}
			notify.Success(app.Notifier, "Exported to "+outPath)
			return nil
		}),
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "Export format (json, yaml, md)")
	cmd.Flags().Int64Var(&sessionID, "session", 0, "Export a saved session instead of the local conversation")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write to a file instead of stdout")
	return cmd
}

func sessionTitle(s apiclient.ChatSession) string {
	if s.Title != nil && *s.Title != "" {
		return *s.Title
	}
	return fmt.Sprintf("Chat %d", s.ID)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

// messageOf 优先使用服务端返回的错误信息。
func messageOf(err error) string {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return err.Error()
}
