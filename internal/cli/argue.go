package cli

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agora/internal/debate"
	"github.com/roach88/agora/internal/errs"
	"github.com/roach88/agora/internal/graph"
)

// Submission reports a stored argument and, for responses, its edge.
type Submission struct {
	ID   string      `json:"id"`
	Edge *graph.Edge `json:"edge,omitempty"`
}

func (s Submission) String() string {
	if s.Edge == nil {
		return s.ID
	}
	rel := string(s.Edge.Kind)
	if s.Edge.Subtype != "" {
		rel += "/" + s.Edge.Subtype
	}
	return fmt.Sprintf("%s\n%s %s (strength %.2f)", s.ID, rel, s.Edge.ToID, s.Edge.Strength)
}

// ChainView is a response chain as printed by chain.
type ChainView struct {
	graph.Chain
}

func (v ChainView) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Chain from %s: %d record(s), depth %d", v.Root, len(v.Records), v.Depth)
	for _, e := range v.Relationships {
		fmt.Fprintf(&b, "\n  %s (%.2f)", e, e.Strength)
	}
	return b.String()
}

// AuditReport lists the cycles found in one session.
type AuditReport struct {
	SessionID string        `json:"session_id"`
	Cycles    []graph.Cycle `json:"cycles"`
}

func (r AuditReport) String() string {
	if len(r.Cycles) == 0 {
		return fmt.Sprintf("Session %s: no cycles", r.SessionID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Session %s: %d cycle(s)", r.SessionID, len(r.Cycles))
	for _, c := range r.Cycles {
		fmt.Fprintf(&b, "\n  %s", c.Message)
	}
	return b.String()
}

// ReindexView reports a catalog rebuild.
type ReindexView struct {
	debate.ReindexResult
}

func (v ReindexView) String() string {
	s := fmt.Sprintf("Indexed %d record(s)", v.Indexed)
	if len(v.Skipped) > 0 {
		s += fmt.Sprintf(", skipped %d: %s", len(v.Skipped), strings.Join(v.Skipped, ", "))
	}
	return s
}

type argueFlags struct {
	session   string
	agent     string
	kind      string
	structure string
	content   string
	target    string
	subtype   string
}

// NewArgueCommand creates the argue command.
func NewArgueCommand(rootOpts *RootOptions) *cobra.Command {
	flags := &argueFlags{}

	cmd := &cobra.Command{
		Use:   "argue",
		Short: "Submit an argument to a session",
		Long: `Submit an argument by --agent to the active session (or --session).

A claim stands alone. A rebuttal, concession or support responds to --target
and records a relationship whose strength depends on the relationship, its
--subtype and the target's reasoning structure:

  rebuttal    subtype logical | empirical | ethical
  concession  subtype full | partial | conditional
  support     subtype evidence | reasoning (optional)

Responses that would close a cycle are rejected before anything is stored.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runArgue(rootOpts, flags, cmd)
		},
	}

	cmd.Flags().StringVar(&flags.session, "session", "", "session id (default: the active session)")
	cmd.Flags().StringVar(&flags.agent, "agent", "", "agent id (required)")
	cmd.Flags().StringVar(&flags.kind, "kind", string(debate.KindClaim), "claim|rebuttal|concession|support")
	cmd.Flags().StringVar(&flags.structure, "structure", string(graph.StructureDeductive), structureNames())
	cmd.Flags().StringVar(&flags.content, "content", "", "argument text (required)")
	cmd.Flags().StringVar(&flags.target, "target", "", "id of the argument responded to")
	cmd.Flags().StringVar(&flags.subtype, "subtype", "", subtypeUsage())
	_ = cmd.MarkFlagRequired("agent")
	_ = cmd.MarkFlagRequired("content")

	return cmd
}

// structureNames renders graph.Structures as "a|b|c".
func structureNames() string {
	names := make([]string, len(graph.Structures))
	for i, st := range graph.Structures {
		names[i] = string(st)
	}
	return strings.Join(names, "|")
}

// subtypeUsage lists the named subtypes of every edge kind.
func subtypeUsage() string {
	parts := make([]string, 0, len(graph.Kinds))
	for _, k := range graph.Kinds {
		named := slices.DeleteFunc(graph.Subtypes(k), func(st string) bool { return st == "" })
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(named, "|")))
	}
	return "relationship subtype (" + strings.Join(parts, "; ") + ")"
}

func runArgue(opts *RootOptions, flags *argueFlags, cmd *cobra.Command) error {
	if !slices.Contains(graph.Structures, graph.Structure(flags.structure)) {
		return errs.Validation("argue", fmt.Sprintf("unknown structure %q: must be one of %s", flags.structure, structureNames()))
	}

	return withApp(opts, cmd, false, func(ctx context.Context, a *app) error {
		id, edge, err := a.svc.Submit(ctx, debate.Argument{
			SessionID: flags.session,
			AgentID:   flags.agent,
			Kind:      debate.ArgumentKind(flags.kind),
			Structure: graph.Structure(flags.structure),
			Content:   flags.content,
			TargetID:  flags.target,
			Subtype:   flags.subtype,
		})
		if err != nil {
			return err
		}
		return a.formatter.Success(Submission{ID: id, Edge: edge})
	})
}

// NewChainCommand creates the chain command.
func NewChainCommand(rootOpts *RootOptions) *cobra.Command {
	var targets bool

	cmd := &cobra.Command{
		Use:   "chain <argument-id>",
		Short: "Show the responses to an argument",
		Long: `Show every argument that responds, directly or transitively, to the
given argument. With --targets, show what the argument responds to instead.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := graph.Responders
			if targets {
				dir = graph.Targets
			}
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				chain, err := a.svc.Chain(ctx, args[0], graph.WithDirection(dir))
				if err != nil {
					return err
				}
				return a.formatter.Success(ChainView{chain})
			})
		},
	}

	cmd.Flags().BoolVar(&targets, "targets", false, "follow what the argument responds to")
	return cmd
}

// NewAuditCommand creates the audit command.
func NewAuditCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit [session-id]",
		Short: "Report relationship cycles in a session",
		Long: `Check the catalogued relationships of a session (default: the active
session) for cycles. Records written by hand or by other tools are checked
as they are; finding cycles is reported, not treated as a failure.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := ""
			if len(args) == 1 {
				session = args[0]
			}
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				if session == "" {
					active, _, err := a.svc.Active(ctx)
					if err != nil {
						return err
					}
					session = active
				}
				cycles, err := a.svc.Audit(ctx, session)
				if err != nil {
					return err
				}
				if cycles == nil {
					cycles = []graph.Cycle{}
				}
				return a.formatter.Success(AuditReport{SessionID: session, Cycles: cycles})
			})
		},
	}
}

// NewReindexCommand creates the reindex command.
func NewReindexCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the record catalog from the object store",
		Long: `Discard the catalog and rebuild it from the stored objects. Corrupt
records are skipped and reported.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				result, err := a.svc.Reindex(ctx)
				if err != nil {
					return err
				}
				return a.formatter.Success(ReindexView{result})
			})
		},
	}
}
