package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ashureev/whisperbridge/internal/domain"
	"github.com/ashureev/whisperbridge/internal/store"
)

// withStore opens the store, runs fn and closes the store again.
func withStore(opts *RootOptions, cmd *cobra.Command, fn func(f *OutputFormatter, repo *store.Repository) error) error {
	f := opts.formatter(cmd)
	client, err := opts.connect()
	if err != nil {
		return f.Fail(err)
	}
	defer func() {
		if closeErr := client.Close(); closeErr != nil {
			slog.Debug("Failed to close store", "error", closeErr)
		}
	}()
	f.VerboseLog("Connected to %s", opts.StoreURL)
	return fn(f, store.NewRepository(client))
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Insert scrolls and reflections from a YAML seed file",
		Long: `Insert the scrolls and reflections listed in a YAML seed file.

Scrolls whose title already exists and reflections already stored with the
same text are skipped, so seeding twice is harmless.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := store.LoadSeed(args[0])
			if err != nil {
				return opts.formatter(cmd).Fail(WrapExitError(ExitCommandError, "load seed", err))
			}
			return withStore(opts, cmd, func(f *OutputFormatter, repo *store.Repository) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				res, err := store.ApplySeed(ctx, repo.Client(), seed)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(res, func(w io.Writer) {
					fmt.Fprintf(w, "Seeded %d scroll(s) and %d reflection(s), skipped %d\n", res.Scrolls, res.Reflections, res.Skipped)
				})
			})
		},
	}
}

// NewScrollsCommand creates the scrolls command.
func NewScrollsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "scrolls",
		Short:         "List the scroll catalog in store order",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, cmd, func(f *OutputFormatter, repo *store.Repository) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				scrolls, err := repo.ListScrolls(ctx)
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(scrolls, func(w io.Writer) {
					if len(scrolls) == 0 {
						fmt.Fprintln(w, "No scrolls found")
						return
					}
					for _, s := range scrolls {
						fmt.Fprintln(w, s.Title)
					}
				})
			})
		},
	}
}

// NewReflectionsCommand creates the reflections command.
func NewReflectionsCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "reflections <scroll> <provider>",
		Short:         "List the canned reflections for a scroll and provider",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(f *OutputFormatter, repo *store.Repository) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				reflections, err := repo.ListReflections(ctx, args[0], args[1])
				if err != nil {
					return f.Fail(err)
				}
				return f.Success(reflections, func(w io.Writer) {
					if len(reflections) == 0 {
						fmt.Fprintln(w, domain.NoReflectionText)
						return
					}
					for _, r := range reflections {
						fmt.Fprintf(w, "- %s\n", r.Text)
					}
				})
			})
		},
	}
}

// NewJourneyCommand creates the journey command.
func NewJourneyCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "journey <email>",
		Short:         "Show the offerings and tier recorded for an email",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(opts, cmd, func(f *OutputFormatter, repo *store.Repository) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				user, err := repo.FindUserByEmail(ctx, args[0])
				if err != nil {
					return f.Fail(err)
				}
				journey := domain.JourneyFor(args[0], user)
				return f.Success(journey, func(w io.Writer) {
					for _, line := range journey.Lines() {
						fmt.Fprintln(w, line)
					}
				})
			})
		},
	}
}

// NewPingCommand creates the ping command.
func NewPingCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ping",
		Short:         "Check that the data store is reachable",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withStore(opts, cmd, func(f *OutputFormatter, repo *store.Repository) error {
				ctx, cancel := opts.context(cmd)
				defer cancel()
				if err := repo.Ping(ctx); err != nil {
					return f.Fail(err)
				}
				return f.Success(map[string]string{"store": "ok"}, func(w io.Writer) {
					fmt.Fprintln(w, "Store reachable")
				})
			})
		},
	}
}
