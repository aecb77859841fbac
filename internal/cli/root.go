// Package cli implements whisperctl, the operator command line for the
// WhisperBridge data store.
package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ashureev/whisperbridge/internal/store"
)

// Opener connects to a data store backend.
type Opener func(storeURL, key string, timeout time.Duration) (store.Client, error)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	StoreURL string
	StoreKey string
	Timeout  time.Duration

	open Opener
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for whisperctl.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOpener(store.Open)
}

// NewRootCommandWithOpener creates the root command with a custom backend opener.
func NewRootCommandWithOpener(open Opener) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "whisperctl",
		Short: "whisperctl - WhisperBridge store operations",
		Long:  "Seed and inspect the scroll catalog, reflections and traveler journeys of a WhisperBridge data store.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.StoreURL, "store-url", envOr("STORE_URL", "SUPABASE_URL"), "data store url (https://, sqlite:<path>, memory:)")
	cmd.PersistentFlags().StringVar(&opts.StoreKey, "store-key", envOr("STORE_KEY", "SUPABASE_KEY"), "data store access key")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "per-request store timeout")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewScrollsCommand(opts))
	cmd.AddCommand(NewReflectionsCommand(opts))
	cmd.AddCommand(NewJourneyCommand(opts))
	cmd.AddCommand(NewPingCommand(opts))

	return cmd
}

// connect opens the configured store. Callers must close the returned client.
func (o *RootOptions) connect() (store.Client, error) {
	if o.StoreURL == "" {
		return nil, NewExitError(ExitCommandError, "store url is required (--store-url or STORE_URL)")
	}
	open := o.open
	if open == nil {
		open = store.Open
	}
	client, err := open(o.StoreURL, o.StoreKey, o.Timeout)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "open store", err)
	}
	return client, nil
}

func (o *RootOptions) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if o.Timeout > 0 {
		return context.WithTimeout(ctx, o.Timeout)
	}
	return context.WithCancel(ctx)
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

func envOr(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
