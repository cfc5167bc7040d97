package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"dentgo-go/internal/notify"
	"dentgo-go/internal/wizard"
	"dentgo-go/pkg/apiclient"
)

var errActionRequired = errors.New("payment needs additional authentication, finish it in the billing portal (`dentgo portal`)")

// flagCollector 使用命令行传入的 payment method，终端里无法渲染卡片表单。
type flagCollector struct {
	paymentMethod string
}

func (c flagCollector) Collect(_ context.Context, _ string) (string, error) {
	if c.paymentMethod == "" {
		return "", errors.New("--payment-method is required to add a card")
	}
	return c.paymentMethod, nil
}

// portalConfirmer 无法在终端内完成 3-D Secure 之类的验证。
type portalConfirmer struct{}

func (portalConfirmer) ConfirmPayment(context.Context, string) error {
	return errActionRequired
}

func newPlansCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "plans",
		Short: "List subscription plans",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			current := ""
			if app.Auth.Bootstrap(ctx) != nil {
				if sub, err := app.Billing.Subscription(ctx); err == nil && sub != nil {
					current = sub.Plan
				}
			}
			out := cmd.OutOrStdout()
			for _, p := range wizard.Plans(app.Config.FreeMessagesPerDay) {
				marker := "  "
				if (p.Plan == wizard.PlanPlus && current == apiclient.PlanPlus) || (p.Plan == wizard.PlanBasic && current == apiclient.PlanFree) {
					marker = "* "
				}
				_, _ = fmt.Fprintf(out, "%s%-6s %-10s %s\n", marker, titleStyle.Render(p.Name), p.PriceLabel(), p.Description)
			}
			return nil
		}),
	}
}

func newSubscribeCmd(r *runner) *cobra.Command {
	var (
		planName      string
		paymentMethod string
		nickName      string
	)
	cmd := &cobra.Command{
		Use:   "subscribe",
		Short: "Choose a plan and subscribe",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			plan, err := wizard.ParsePlan(planName)
			if err != nil {
				return err
			}
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}

			w := wizard.New(app.Billing, flagCollector{paymentMethod: paymentMethod}, portalConfirmer{}, app.Notifier, wizard.Options{
				PriceID:  app.Config.PriceID,
				NickName: nickName,
			})
			// 指定的支付方式已保存时直接使用，否则在付款步骤添加
			if paymentMethod != "" {
				cards, err := app.Billing.Cards(ctx)
				if err != nil {
					return err
				}
				for _, c := range cards {
					if c.PaymentMethodID == paymentMethod {
						w.SelectPaymentMethod(paymentMethod)
					}
				}
			}
			return runWizard(ctx, w, plan)
		}),
	}
	cmd.Flags().StringVar(&planName, "plan", "plus", "Plan to subscribe to (basic, plus)")
	cmd.Flags().StringVar(&paymentMethod, "payment-method", "", "Stripe payment method id to pay with")
	cmd.Flags().StringVar(&nickName, "nickname", "", "Nickname for a newly added card")
	return cmd
}

// runWizard 把向导一路推进到完成，任一步失败即停止。
func runWizard(ctx context.Context, w *wizard.Wizard, plan wizard.Plan) error {
	if err := w.ChoosePlan(ctx, plan); err != nil {
		return err
	}
	for w.Step() != wizard.StepSuccess {
		var err error
		switch w.Step() {
		case wizard.StepPayment:
			err = w.SubmitPayment(ctx)
		case wizard.StepReview:
			err = w.Confirm(ctx)
		default:
			err = fmt.Errorf("%w: unexpected step %s", wizard.ErrInvalidTransition, w.Step())
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func newCardsCmd(r *runner) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cards",
		Short: "Manage saved cards",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List saved cards",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			cards, err := app.Billing.Cards(ctx)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(cards) == 0 {
				_, _ = fmt.Fprintln(out, dimStyle.Render("No saved cards."))
				return nil
			}
			for _, c := range cards {
				_, _ = fmt.Fprintf(out, "%-36s %-12s •••• %s\n", c.ID, c.Network, c.Last4)
			}
			return nil
		}),
	}

	var nickName string
	add := &cobra.Command{
		Use:   "add <payment-method-id>",
		Short: "Save a card",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			card, err := app.Billing.AddCard(ctx, args[0], nickName)
			if err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			notify.Success(app.Notifier, fmt.Sprintf("Card %s •••• %s added", card.Network, card.Last4))
			return nil
		}),
	}
	add.Flags().StringVar(&nickName, "nickname", "", "Card nickname")

	remove := &cobra.Command{
		Use:   "remove <card-id>",
		Short: "Remove a saved card",
		Args:  cobra.ExactArgs(1),
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			if err := app.Billing.RemoveCard(ctx, args[0]); err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			notify.Success(app.Notifier, "Card removed")
			return nil
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func newPortalCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "portal",
		Short: "Print a billing portal link",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			url, err := app.Billing.CreatePortalSession(ctx, app.Config.PortalReturnURL)
			if err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), url)
			return nil
		}),
	}
}

func newCancelSubscriptionCmd(r *runner) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel-subscription",
		Short: "Cancel the Plus subscription",
		RunE: r.run(func(ctx context.Context, cmd *cobra.Command, app *App, args []string) error {
			if _, err := app.RequireUser(ctx); err != nil {
				return err
			}
			if err := app.Client.CancelSubscription(ctx); err != nil {
				notify.Error(app.Notifier, messageOf(err))
				return err
			}
			app.Billing.Refresh()
			notify.Success(app.Notifier, "Subscription canceled")
			return nil
		}),
	}
}
