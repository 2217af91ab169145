package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/objects"
	"github.com/roach88/agora/internal/payload"
)

// InitResult reports a created store.
type InitResult struct {
	Root  string `json:"root"`
	Index string `json:"index"`
}

func (r InitResult) String() string {
	return fmt.Sprintf("Initialized agora store in %s", r.Root)
}

// RecordRef names one stored record.
type RecordRef struct {
	Bucket string `json:"bucket"`
	ID     string `json:"id"`
}

func (r RecordRef) String() string {
	return r.ID
}

// ObjectView is a stored object as printed by cat. Text output is the
// canonical payload.
type ObjectView struct {
	objects.StoredObject
}

func (v ObjectView) String() string {
	canonical, err := payload.MarshalCanonical(v.Payload)
	if err != nil {
		return fmt.Sprintf("<unprintable payload: %v>", err)
	}
	return string(canonical)
}

// Listing is the ids stored in a bucket.
type Listing struct {
	Bucket string   `json:"bucket"`
	IDs    []string `json:"ids"`
}

func (l Listing) String() string {
	return strings.Join(l.IDs, "\n")
}

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the store layout",
		Long: `Create the store directory, its object buckets, the refs directory
and the record catalog. Running init on an existing store is harmless.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, true, func(ctx context.Context, a *app) error {
				return a.formatter.Success(InitResult{Root: a.cfg.Root, Index: a.cfg.IndexPath()})
			})
		},
	}
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	var explicitID string

	cmd := &cobra.Command{
		Use:   "put <bucket> [file]",
		Short: "Store a JSON record",
		Long: `Store the JSON document in file (standard input when omitted or "-")
in bucket and print its id.

The id is the SHA-256 of the record's canonical form unless --id names one.
Records in the agents, simulations and arguments buckets must match their
schema.`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			file := "-"
			if len(args) == 2 {
				file = args[1]
			}
			return runPut(rootOpts, args[0], file, explicitID, cmd)
		},
	}

	cmd.Flags().StringVar(&explicitID, "id", "", "store under this id instead of the content id")

	return cmd
}

func runPut(opts *RootOptions, bucket, file, explicitID string, cmd *cobra.Command) error {
	data, err := readInput(file, cmd.InOrStdin())
	if err != nil {
		return WrapExitError(ExitCommandError, "read record", err)
	}

	return withApp(opts, cmd, false, func(ctx context.Context, a *app) error {
		v, err := payload.Parse(data, a.cfg.MaxDepth)
		if err != nil {
			return &errs.Error{Code: errs.CodeValidation, Op: "put", Bucket: bucket, Message: "invalid JSON: " + err.Error(), Err: err}
		}
		id, err := a.svc.Put(ctx, bucket, v, explicitID)
		if err != nil {
			return err
		}
		return a.formatter.Success(RecordRef{Bucket: bucket, ID: id})
	})
}

func readInput(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

// NewCatCommand creates the cat command.
func NewCatCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "cat <bucket> <id>",
		Short:         "Print a stored record",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				obj, err := a.svc.Get(ctx, args[0], args[1])
				if err != nil {
					return err
				}
				return a.formatter.Success(ObjectView{obj})
			})
		},
	}
}

// NewLsCommand creates the ls command.
func NewLsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ls <bucket>",
		Short:         "List the ids stored in a bucket",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				ids, err := a.svc.List(ctx, args[0])
				if err != nil {
					return err
				}
				a.formatter.VerboseLog("%d record(s) in %s", len(ids), args[0])
				return a.formatter.Success(Listing{Bucket: args[0], IDs: ids})
			})
		},
	}
}

// NewRmCommand creates the rm command.
func NewRmCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <bucket> <id>",
		Short: "Delete a stored record",
		Long: `Delete a record and its catalog entry. Relationships from other
arguments to it are left dangling; audit and chain skip them.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				if err := a.svc.Remove(ctx, args[0], args[1]); err != nil {
					return err
				}
				return a.formatter.Success(RecordRef{Bucket: args[0], ID: args[1]})
			})
		},
	}
}
