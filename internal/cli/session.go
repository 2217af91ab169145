package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/agora/internal/debate"
	"github.com/roach88/agora/internal/errs"
)

// SessionView describes a simulation and whether it is the active session.
type SessionView struct {
	SessionID    string   `json:"session_id,omitempty"`
	Active       bool     `json:"active"`
	Topic        string   `json:"topic,omitempty"`
	Participants []string `json:"participants,omitempty"`
	Token        string   `json:"token,omitempty"`
}

func newSessionView(id string, sim debate.Simulation, active bool) SessionView {
	return SessionView{
		SessionID:    id,
		Active:       active,
		Topic:        sim.Topic,
		Participants: sim.Participants,
		Token:        sim.Token,
	}
}

func (v SessionView) String() string {
	if v.SessionID == "" {
		return "No active session"
	}
	var b strings.Builder
	if v.Active {
		fmt.Fprintf(&b, "Active session %s\n", v.SessionID)
	} else {
		fmt.Fprintf(&b, "Session %s\n", v.SessionID)
	}
	fmt.Fprintf(&b, "Topic: %s", v.Topic)
	if len(v.Participants) > 0 {
		fmt.Fprintf(&b, "\nParticipants: %s", strings.Join(v.Participants, ", "))
	}
	return b.String()
}

// NewStartCommand creates the start command.
func NewStartCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		topic        string
		participants []string
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start a debate session",
		Long: `Store a new simulation on --topic and make it the active session.

Each --participant must be a registered agent id; when any are named, only
they may submit arguments. Starting fails while another session is active:
the new simulation is still stored and can be activated with checkout.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStart(rootOpts, topic, participants, cmd)
		},
	}

	cmd.Flags().StringVar(&topic, "topic", "", "debate topic (required)")
	cmd.Flags().StringArrayVar(&participants, "participant", nil, "agent id allowed to argue (repeatable)")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func runStart(opts *RootOptions, topic string, participants []string, cmd *cobra.Command) error {
	return withApp(opts, cmd, false, func(ctx context.Context, a *app) error {
		id, err := a.svc.StartSimulation(ctx, topic, participants)
		if err != nil {
			if id != "" && errs.IsConflict(err) {
				a.formatter.VerboseLog("Simulation stored as %s but not activated", id)
				return WrapExitError(ExitFailure, fmt.Sprintf("simulation %s stored; run agora checkout %s to activate it", id, id), err)
			}
			return err
		}
		_, sim, err := a.svc.Active(ctx)
		if err != nil {
			return err
		}
		return a.formatter.Success(newSessionView(id, sim, true))
	})
}

// NewCheckoutCommand creates the checkout command.
func NewCheckoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "checkout <session-id>",
		Short:         "Make a stored simulation the active session",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				if err := a.svc.Checkout(ctx, args[0]); err != nil {
					return err
				}
				id, sim, err := a.svc.Active(ctx)
				if err != nil {
					return err
				}
				return a.formatter.Success(newSessionView(id, sim, true))
			})
		},
	}
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "status",
		Short:         "Show the active session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				id, sim, err := a.svc.Active(ctx)
				switch {
				case errs.IsNotFound(err):
					a.formatter.VerboseLog("%v", err)
					return a.formatter.Success(SessionView{})
				case err != nil:
					return err
				}
				return a.formatter.Success(newSessionView(id, sim, true))
			})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear",
		Short:         "End the active session",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, cmd, false, func(ctx context.Context, a *app) error {
				if err := a.svc.Close(ctx); err != nil {
					return err
				}
				return a.formatter.Success(SessionView{})
			})
		},
	}
}
