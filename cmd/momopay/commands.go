package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/momopay/internal/intent"
	"github.com/angelmondragon/momopay/internal/notifications"
	"github.com/angelmondragon/momopay/internal/payments"
	"github.com/angelmondragon/momopay/pkg/enums"
)

// waitMargin covers the backup confirmation that follows the poll deadline.
const waitMargin = 15 * time.Second

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// withApp builds the app, runs fn and closes the app, joining close errors.
func withApp(cmd *cobra.Command, opts *globalOptions, fn func(ctx context.Context, a *app) error) (err error) {
	ctx := cmd.Context()
	a, err := newApp(ctx, *opts)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	return fn(ctx, a)
}

func printNotices(w io.Writer, a *app) {
	a.bridge.OnNotice(func(n notifications.Notice) {
		fmt.Fprintf(w, "[%s] %s\n", n.Severity, n.Message)
	})
}

// waitForOutcome blocks until confirmation finishes and reports terminal failures as errors.
func waitForOutcome(ctx context.Context, a *app) (payments.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, a.cfg.Payments.PollTimeout+waitMargin)
	defer cancel()
	snap, err := a.service.Wait(ctx)
	if err != nil {
		return snap, fmt.Errorf("waiting for confirmation: %w", err)
	}
	switch snap.State {
	case enums.PaymentStateFailed, enums.PaymentStateExpired:
		return snap, fmt.Errorf("payment %s: %s", snap.State, snap.Error)
	}
	return snap, nil
}

func payCmd(opts *globalOptions) *cobra.Command {
	var (
		in     intent.Input
		amount string
		noWait bool
	)
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Submit a mobile-money charge and wait for confirmation",
		Example: `  momopay pay --user-id u-1 --email payer@example.com --name "Chikondi Banda" \
    --amount 1000 --currency MWK --mobile 999000111 --provider airtel`,
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := decimal.NewFromString(amount)
			if err != nil {
				return fmt.Errorf("invalid --amount %q: %w", amount, err)
			}
			in.Amount = parsed

			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				printNotices(cmd.ErrOrStderr(), a)
				a.start(ctx)

				snap, err := a.service.Submit(ctx, in)
				if err != nil {
					_ = printJSON(cmd.OutOrStdout(), snap)
					return err
				}
				if !noWait {
					snap, err = waitForOutcome(ctx, a)
				}
				if printErr := printJSON(cmd.OutOrStdout(), snap); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}

	f := cmd.Flags()
	f.StringVar(&in.UserID, "user-id", "", "payer id")
	f.StringVar(&in.Email, "email", "", "payer email")
	f.StringVar(&in.Name, "name", "", "payer name")
	f.StringVar(&amount, "amount", "", "amount in major units")
	f.StringVar((*string)(&in.Currency), "currency", string(enums.CurrencyMWK), "currency (MWK|USD)")
	f.StringVar(&in.Mobile, "mobile", "", "mobile number to charge")
	f.StringVar((*string)(&in.Provider), "provider", string(enums.ProviderAirtel), "mobile-money provider (airtel|tnm)")
	f.BoolVar(&noWait, "no-wait", false, "return once the charge request is accepted")
	for _, name := range []string{"user-id", "email", "name", "amount", "mobile"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func reconcileCmd(opts *globalOptions) *cobra.Command {
	var noWait bool
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Resolve a pending transaction left by an earlier session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				printNotices(cmd.ErrOrStderr(), a)
				result, err := a.service.Start(ctx)
				if err == nil && result.Outcome == payments.OutcomeResubmitted && !noWait {
					_, err = waitForOutcome(ctx, a)
				}
				out := struct {
					Result   payments.Result   `json:"result"`
					Snapshot payments.Snapshot `json:"snapshot"`
				}{result, a.service.Snapshot()}
				if printErr := printJSON(cmd.OutOrStdout(), out); printErr != nil {
					return printErr
				}
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&noWait, "no-wait", false, "do not wait for confirmation of a resubmitted charge")
	return cmd
}

func pendingCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show the stored pending transaction, if any",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				record, err := a.service.Pending(ctx)
				if err != nil {
					return err
				}
				if record == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "no pending transaction")
					return nil
				}
				return printJSON(cmd.OutOrStdout(), record)
			})
		},
	}
}

func transactionsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "transactions",
		Short: "List transactions recorded by the payment backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				txs, err := a.service.Transactions(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), txs)
			})
		},
	}
}

func detailsCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "details <paymentId>",
		Short: "Show one payment as the backend reports it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, opts, func(ctx context.Context, a *app) error {
				details, err := a.service.PaymentDetails(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), details)
			})
		},
	}
}
