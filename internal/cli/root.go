package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"dentgo-go/internal/config"
	"dentgo-go/pkg/log"
)

var (
	version = "dev"
	commit  = "unknown"
)

type rootOptions struct {
	configPath string
	verbose    bool
}

// runner 在各子命令之间传递懒加载的 App。
type runner struct {
	factory Factory
	opts    rootOptions
	app     *App
}

func (r *runner) load(cmd *cobra.Command) (*App, error) {
	if r.app != nil {
		return r.app, nil
	}
	cfg, err := config.LoadClient(r.opts.configPath)
	if err != nil {
		return nil, err
	}
	app, err := r.factory(cfg, cmd.OutOrStdout())
	if err != nil {
		return nil, err
	}
	r.app = app
	return app, nil
}

// run 包装需要 App 的子命令。
func (r *runner) run(fn func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		app, err := r.load(cmd)
		if err != nil {
			return err
		}
		defer func() {
			if err := app.Close(); err != nil {
				log.Warnf("cli: close app, error: %v", err)
			}
		}()
		return fn(cmd.Context(), cmd, app, args)
	}
}

// NewRootCmd 构造 dentgo 根命令。
func NewRootCmd(factory Factory) *cobra.Command {
	r := &runner{factory: factory}

	root := &cobra.Command{
		Use:   "dentgo",
		Short: "Dentgo dental assistant in your terminal",
		Long: `Dentgo answers dental case questions, keeps your chat history,
and manages your subscription from the terminal.

Quick Start:
  dentgo login --credential <google-id-token>
  dentgo chat
  dentgo history`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			log.InitCLI(r.opts.verbose)
		},
	}
	root.PersistentFlags().StringVar(&r.opts.configPath, "config", "", "Config file (default ~/.dentgo/config.yaml)")
	root.PersistentFlags().BoolVarP(&r.opts.verbose, "verbose", "v", false, "Enable verbose logging")
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.AddCommand(
		newLoginCmd(r),
		newLoginAppleCmd(r),
		newLogoutCmd(r),
		newWhoamiCmd(r),
		newDeleteAccountCmd(r),
		newChatCmd(r),
		newHistoryCmd(r),
		newShowCmd(r),
		newEndCmd(r),
		newSearchCmd(r),
		newExportCmd(r),
		newPlansCmd(r),
		newSubscribeCmd(r),
		newCardsCmd(r),
		newPortalCmd(r),
		newCancelSubscriptionCmd(r),
		newNotificationsCmd(r),
		newXRayCmd(r),
	)
	return root
}

// Execute 运行根命令。
func Execute() {
	err := NewRootCmd(NewApp).ExecuteContext(context.Background())
	log.Sync()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
