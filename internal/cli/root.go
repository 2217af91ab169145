package cli

import (
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/agora/internal/errs"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"
	Root    string // store directory; overrides the configured root when set
	Config  string // optional YAML config file
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the agora CLI.
func NewRootCommand() *cobra.Command {
	cmd, _ := newRootCommand()
	return cmd
}

func newRootCommand() (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "agora",
		Short: "agora - a record store for structured debates",
		Long: `A local, Git-inspired record store for structured debates.

Records are immutable and content-addressed. One debate session is active
at a time, and arguments form a relationship graph of rebuttals,
concessions and support that is kept free of cycles.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output (debug logging)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Root, "root", "", "store directory (default from config, then .agora)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "YAML config file")

	// Add subcommands
	cmd.AddCommand(NewInitCommand(opts))
	cmd.AddCommand(NewPutCommand(opts))
	cmd.AddCommand(NewCatCommand(opts))
	cmd.AddCommand(NewLsCommand(opts))
	cmd.AddCommand(NewRmCommand(opts))
	cmd.AddCommand(NewStartCommand(opts))
	cmd.AddCommand(NewCheckoutCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewClearCommand(opts))
	cmd.AddCommand(NewArgueCommand(opts))
	cmd.AddCommand(NewChainCommand(opts))
	cmd.AddCommand(NewAuditCommand(opts))
	cmd.AddCommand(NewReindexCommand(opts))

	return cmd, opts
}

// Execute runs the CLI with args and returns the process exit code.
// Errors are reported on stderr in text mode and as a JSON error response on
// stdout in json mode.
func Execute(args []string, stdout, stderr io.Writer) int {
	cmd, opts := newRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: stderr, Verbose: opts.Verbose}
	if opts.Format == "json" {
		formatter.Writer = stdout
	}
	_ = formatter.Error(errorCode(err), err.Error(), nil)
	return exitCode(err)
}

// exitCode maps err to a process exit code. Store errors are classified by
// storeError; errors cobra raises itself (unknown flags, wrong argument
// counts) are command errors.
func exitCode(err error) int {
	var exitErr *ExitError
	switch {
	case errors.As(err, &exitErr):
		return exitErr.Code
	case errs.CodeOf(err) != "":
		return GetExitCode(storeError(err))
	default:
		return ExitCommandError
	}
}

// errorCode names err for output: the error taxonomy code when there is
// one, otherwise the generic CLI code.
func errorCode(err error) string {
	if code := errs.CodeOf(err); code != "" {
		return string(code)
	}
	return ErrCodeGeneric
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
