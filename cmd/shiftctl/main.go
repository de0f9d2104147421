// Command shiftctl runs the pipeline's admin operations from the shell, for
// cron-style scheduling.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"locum-backend/internal/app"
	authusecase "locum-backend/internal/auth/usecase"
	"locum-backend/pkg/config"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "shiftctl",
		Short:         "Admin operations for the locum shift pipeline",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newResyncCmd(),
		newExtractCmd(),
		newRenewWatchCmd(),
		newImportChatCmd(),
		newTokenCmd(),
	)
	return root
}

// withApp wires the application for one command and tears it down afterwards.
func withApp(cmd *cobra.Command, fn func(ctx context.Context, a *app.App) (interface{}, error)) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, config.Load(), app.Options{})
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := fn(ctx, a)
	if err != nil {
		return err
	}
	return printJSON(cmd, out)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newResyncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resync",
		Short: "Search the mailbox with the stored query and ingest every match",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				res, err := a.Sync.FullSync(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ok": true, "ingested": res.Ingested}, nil
			})
		},
	}
}

func newExtractCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "extract",
		Short: "Run one extraction batch over unextracted messages",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				summary, err := a.Extraction.Run(ctx)
				if err != nil {
					return nil, err
				}
				if summary.Skipped {
					return map[string]interface{}{"ok": true, "skipped": true}, nil
				}
				return map[string]interface{}{
					"ok":        true,
					"processed": summary.Processed,
					"failed":    summary.Failed,
					"offers": map[string]int{
						"created": summary.OffersCreated,
						"updated": summary.OffersUpdated,
					},
				}, nil
			})
		},
	}
}

func newRenewWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "renew-watch",
		Short: "Re-register the Gmail push watch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				res, err := a.Sync.RenewWatch(ctx)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ok": true, "expiration": res.Expiration, "history_id": res.HistoryID}, nil
			})
		},
	}
}

func newImportChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import-chat <file>",
		Short: "Ingest a WhatsApp chat export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			return withApp(cmd, func(ctx context.Context, a *app.App) (interface{}, error) {
				n, err := a.Ingest.ImportChatExport(ctx, f)
				if err != nil {
					return nil, err
				}
				return map[string]interface{}{"ok": true, "count": n}, nil
			})
		},
	}
}

func newTokenCmd() *cobra.Command {
	var ttl time.Duration
	var subject string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an admin bearer token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			if ttl <= 0 {
				ttl = cfg.AdminTokenExpiry
			}
			token, err := authusecase.NewAuthUsecase(cfg.JWTSecret).IssueAdminToken(subject, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "token lifetime (default ADMIN_TOKEN_EXPIRY)")
	cmd.Flags().StringVar(&subject, "subject", "admin", "token subject")
	return cmd
}
