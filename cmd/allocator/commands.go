package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/allocator/internal/buildinfo"
	"github.com/dmitrijs2005/allocator/internal/common"
	"github.com/dmitrijs2005/allocator/internal/server"
	"github.com/dmitrijs2005/allocator/internal/server/config"
	"github.com/dmitrijs2005/allocator/internal/server/models"
	"github.com/dmitrijs2005/allocator/internal/server/offers"
	"github.com/dmitrijs2005/allocator/internal/server/services"
	"github.com/dmitrijs2005/allocator/internal/server/sweeper"
	"github.com/spf13/cobra"
)

type lifecycle interface {
	Run(ctx context.Context) error
	Migrate(ctx context.Context) error
	Do(ctx context.Context, fn func(ctx context.Context) error) error
	Close() error
}

type allocationAPI interface {
	StartOfferRound(ctx context.Context, listingID string) (*models.Offer, error)
	RespondToOffer(ctx context.Context, offerID string, outcome offers.Outcome) (*services.Response, error)
	RespondWithToken(ctx context.Context, token string, outcome offers.Outcome) (*services.Response, error)
	RoundSnapshot(ctx context.Context, offerID string) ([]*models.OfferApplicant, error)
	CloseListing(ctx context.Context, listingID string) error
}

type sweepAPI interface {
	Sweep(ctx context.Context, now time.Time) (sweeper.Result, error)
}

type env struct {
	app   lifecycle
	alloc allocationAPI
	sweep sweepAPI
}

// openEnv loads the configuration from defaults, the -c file and the short
// flags in os.Args, then builds the application. Replaced in tests.
var openEnv = func(ctx context.Context) (*env, error) {
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return &env{app: app, alloc: app.Allocation(), sweep: app.Sweeper()}, nil
}

func withEnv(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	ctx := cmd.Context()
	e, err := openEnv(ctx)
	if err != nil {
		return err
	}
	defer e.app.Close()
	return fn(ctx, e)
}

// oneShot runs fn while the event bus delivers what fn publishes.
func oneShot(cmd *cobra.Command, fn func(ctx context.Context, e *env) error) error {
	return withEnv(cmd, func(ctx context.Context, e *env) error {
		return e.app.Do(ctx, func(ctx context.Context) error { return fn(ctx, e) })
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newCommand applies the settings every subcommand shares. Configuration
// flags (-d, -t, -c, ...) are read by the config package, so cobra lets them
// through untouched.
func newCommand(use, short string, args cobra.PositionalArgs, run func(cmd *cobra.Command, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:                use,
		Short:              short,
		Args:               args,
		SilenceUsage:       true,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		RunE:               run,
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "allocator",
		Short: "Rental listing allocation and offer engine",
		Long: `Ranks eligible applicants for a vacant listing, offers it to them one at a
time and cascades to the next applicant on decline or expiry.

Configuration comes from defaults, then a JSON or YAML file (-c path), then
short flags: -d DSN, -t offer TTL hours, -i sweep interval seconds,
-n sweep batch size, -r=false to stop re-admitting expired applicants,
-s token secret, -l log level, -b/-g/-e/-u/-p audit S3 settings.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		newRunCommand(),
		newMigrateCommand(),
		newSweepCommand(),
		newStartRoundCommand(),
		newRespondCommand(),
		newRespondTokenCommand(),
		newSnapshotCommand(),
		newCloseListingCommand(),
		newVersionCommand(),
	)
	return cmd
}

func newRunCommand() *cobra.Command {
	return newCommand("run", "Run the expiry sweeper and event bus until interrupted", cobra.ArbitraryArgs,
		func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.app.Run(ctx)
			})
		})
}

func newMigrateCommand() *cobra.Command {
	return newCommand("migrate", "Apply database migrations", cobra.ArbitraryArgs,
		func(cmd *cobra.Command, _ []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				return e.app.Migrate(ctx)
			})
		})
}

func newSweepCommand() *cobra.Command {
	return newCommand("sweep", "Run one expiry sweep cycle", cobra.ArbitraryArgs,
		func(cmd *cobra.Command, _ []string) error {
			return oneShot(cmd, func(ctx context.Context, e *env) error {
				res, err := e.sweep.Sweep(ctx, time.Now())
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), res)
			})
		})
}

func newStartRoundCommand() *cobra.Command {
	return newCommand("start-round <listing-id>", "Rank the eligible pool and offer the listing to the top applicant", cobra.ExactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, func(ctx context.Context, e *env) error {
				offer, err := e.alloc.StartOfferRound(ctx, args[0])
				if errors.Is(err, common.ErrConflict) && offer != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "listing already has a pending offer")
					err = nil
				}
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), offer)
			})
		})
}

func newRespondCommand() *cobra.Command {
	return newCommand("respond <offer-id> <accepted|declined>", "Record an applicant's answer to an offer", cobra.ExactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			outcome, err := offers.ParseOutcome(args[1])
			if err != nil {
				return err
			}
			return oneShot(cmd, func(ctx context.Context, e *env) error {
				resp, err := e.alloc.RespondToOffer(ctx, args[0], outcome)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			})
		})
}

func newRespondTokenCommand() *cobra.Command {
	return newCommand("respond-token <token> <accepted|declined>", "Record an answer carried by a signed response token", cobra.ExactArgs(2),
		func(cmd *cobra.Command, args []string) error {
			outcome, err := offers.ParseOutcome(args[1])
			if err != nil {
				return err
			}
			return oneShot(cmd, func(ctx context.Context, e *env) error {
				resp, err := e.alloc.RespondWithToken(ctx, args[0], outcome)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), resp)
			})
		})
}

func newSnapshotCommand() *cobra.Command {
	return newCommand("snapshot <offer-id>", "Print the ranked snapshot of an offer's round", cobra.ExactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, func(ctx context.Context, e *env) error {
				rows, err := e.alloc.RoundSnapshot(ctx, args[0])
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), rows)
			})
		})
}

func newCloseListingCommand() *cobra.Command {
	return newCommand("close-listing <listing-id>", "Close a listing that has no pending offer", cobra.ExactArgs(1),
		func(cmd *cobra.Command, args []string) error {
			return oneShot(cmd, func(ctx context.Context, e *env) error {
				return e.alloc.CloseListing(ctx, args[0])
			})
		})
}

func newVersionCommand() *cobra.Command {
	return newCommand("version", "Print build information", cobra.NoArgs,
		func(cmd *cobra.Command, _ []string) error {
			buildinfo.PrintBuildData(cmd.OutOrStdout())
			return nil
		})
}
