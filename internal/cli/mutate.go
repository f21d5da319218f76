package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
	"github.com/roach88/savetray/internal/tray"
)

// checkFlags are the optional check fields shared by attach and resolve.
// Unset flags leave the ledger untouched.
type checkFlags struct {
	Threshold float64
	CheckKind string
	Success   string
}

func (c *checkFlags) register(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&c.Threshold, "threshold", 0, "check threshold (DC)")
	cmd.Flags().StringVar(&c.CheckKind, "check-kind", "", "check kind (e.g. dex)")
	cmd.Flags().StringVar(&c.Success, "success", "", "explicit verdict: true|false")
}

func (c *checkFlags) threshold(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	return ledger.Float(c.Threshold)
}

func (c *checkFlags) checkKind(cmd *cobra.Command) *string {
	if !cmd.Flags().Changed("check-kind") {
		return nil
	}
	return ledger.String(c.CheckKind)
}

func (c *checkFlags) success(cmd *cobra.Command) (*bool, error) {
	if !cmd.Flags().Changed("success") {
		return nil, nil
	}
	b, err := strconv.ParseBool(c.Success)
	if err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: --success must be true or false, got %q", ErrCodeArgs, c.Success))
	}
	return ledger.Bool(b), nil
}

// parseTarget parses "ref" or "ref=display name".
func parseTarget(s string) (ledger.Target, error) {
	ref, name, _ := strings.Cut(s, "=")
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ledger.Target{}, NewExitError(ExitCommandError, fmt.Sprintf("%s: empty target ref in %q", ErrCodeArgs, s))
	}
	return ledger.Target{EntityRef: ledger.EntityRef(ref), TokenName: strings.TrimSpace(name)}, nil
}

// AttachOptions holds flags for the attach command.
type AttachOptions struct {
	*RootOptions
	checkFlags
	Targets []string
	Value   float64
}

// NewAttachCommand creates the attach command.
func NewAttachCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttachOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attach <document> --target <ref[=name]>...",
		Short: "Add or update participants on a document's tray",
		Long: `Merge participants into a document's tray and ship the result to the
coordinator.

Existing participants keep their position; their display name is refreshed
and their outcome is only replaced by fields that were given.

Examples:
  savetray attach ChatMessage.abc --target Actor.a=Goblin --target Actor.b=Orc --threshold 15 --check-kind dex
  savetray attach ChatMessage.abc --target Actor.a --value 17 --success true`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttach(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Targets, "target", "t", nil, "participant as ref or ref=name (repeatable)")
	cmd.Flags().Float64Var(&opts.Value, "value", 0, "outcome value")
	opts.checkFlags.register(cmd)

	return cmd
}

func runAttach(opts *AttachOptions, documentRef string, cmd *cobra.Command) error {
	targets := make([]ledger.Target, 0, len(opts.Targets))
	for _, s := range opts.Targets {
		t, err := parseTarget(s)
		if err != nil {
			return err
		}
		targets = append(targets, t)
	}

	success, err := opts.success(cmd)
	if err != nil {
		return err
	}
	patch := ledger.MetaPatch{
		Threshold:      opts.threshold(cmd),
		CheckKind:      opts.checkKind(cmd),
		OutcomeSuccess: success,
	}
	if cmd.Flags().Changed("value") {
		patch.OutcomeValue = ledger.Float(opts.Value)
	}

	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	res := s.service.Attach(commandContext(cmd), documentRef, targets, patch)
	return reportResult(newFormatter(opts.RootOptions, cmd), "attach", documentRef, res)
}

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	checkFlags
	Name  string
	Total float64
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve <document> <ref> --total <n>",
		Short: "Record one participant's check result",
		Long: `Record a participant's check total on a document's tray.

Without --success the verdict is total >= threshold when --threshold is
given, and unknown otherwise.

Example:
  savetray resolve ChatMessage.abc Actor.a --name Goblin --total 17 --threshold 15`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResolve(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "display name")
	cmd.Flags().Float64Var(&opts.Total, "total", 0, "check total")
	_ = cmd.MarkFlagRequired("total")
	opts.checkFlags.register(cmd)

	return cmd
}

func runResolve(opts *ResolveOptions, documentRef, ref string, cmd *cobra.Command) error {
	target, err := parseTarget(ref)
	if err != nil {
		return err
	}
	if opts.Name != "" {
		target.TokenName = opts.Name
	}
	success, err := opts.success(cmd)
	if err != nil {
		return err
	}

	s, err := newSession(opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	res := s.service.OnCheckResolved(commandContext(cmd), tray.CheckResolved{
		DocumentRef: documentRef,
		Target:      target,
		Total:       ledger.Float(opts.Total),
		Threshold:   opts.threshold(cmd),
		CheckKind:   opts.checkKind(cmd),
		Success:     success,
	})
	return reportResult(newFormatter(opts.RootOptions, cmd), "resolve", documentRef, res)
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "delete <document> <ref>",
		Short:         "Remove one participant from a document's tray",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(rootOpts, cmd, args[0], tray.Intent{Kind: tray.IntentDelete, EntityRef: ledger.EntityRef(args[1])})
		},
	}
}

// NewClearCommand creates the clear command.
func NewClearCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "clear <document>",
		Short:         "Remove every participant, keeping the check metadata",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIntent(rootOpts, cmd, args[0], tray.Intent{Kind: tray.IntentClear})
		},
	}
}

func runIntent(opts *RootOptions, cmd *cobra.Command, documentRef string, in tray.Intent) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	res, err := s.service.HandleIntent(commandContext(cmd), documentRef, in)
	if err != nil {
		_ = newFormatter(opts, cmd).Error(ErrCodeIntent, err.Error(), nil)
		return WrapExitError(ExitFailure, string(in.Kind)+" failed", err)
	}
	return reportResult(newFormatter(opts, cmd), string(in.Kind), documentRef, res)
}

// RollRequest is a check the host should perform for a participant.
type RollRequest struct {
	Document  string           `json:"document"`
	EntityRef ledger.EntityRef `json:"entityRef"`
	CheckKind string           `json:"checkKind"`
	Threshold *float64         `json:"threshold"`
}

func (r RollRequest) String() string {
	if r.Threshold == nil {
		return fmt.Sprintf("roll %s for %s", r.CheckKind, r.EntityRef)
	}
	return fmt.Sprintf("roll %s vs %v for %s", r.CheckKind, *r.Threshold, r.EntityRef)
}

// printRoller hands roll requests to whoever runs the CLI.
type printRoller struct {
	f *OutputFormatter
}

func (p printRoller) RequestRoll(_ context.Context, documentRef string, ref ledger.EntityRef, threshold *float64, checkKind string) error {
	return p.f.Success(RollRequest{Document: documentRef, EntityRef: ref, CheckKind: checkKind, Threshold: threshold})
}

// NewRollCommand creates the roll command.
func NewRollCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "roll <document> <ref>",
		Short: "Ask for a participant's check using the tray's check kind",
		Long: `Print the check a participant should roll, taken from the tray's check
kind and threshold. The tray is not changed; record the result with resolve.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := newFormatter(rootOpts, cmd)
			s, err := newSession(rootOpts, cmd, tray.WithRoller(printRoller{f: f}))
			if err != nil {
				return err
			}
			_, err = s.service.HandleIntent(commandContext(cmd), args[0], tray.Intent{Kind: tray.IntentRoll, EntityRef: ledger.EntityRef(args[1])})
			if err != nil {
				_ = f.Error(ErrCodeIntent, err.Error(), nil)
				return WrapExitError(ExitFailure, "roll failed", err)
			}
			return nil
		},
	}
}

// DocumentOptions holds flags for the document command.
type DocumentOptions struct {
	*RootOptions
	Kind string
}

// NewDocumentCommand creates the document command group.
func NewDocumentCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DocumentOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "document",
		Short: "Manage documents on this peer",
	}

	create := &cobra.Command{
		Use:           "create <ref>",
		Short:         "Register a document on this peer",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := store.DocumentKind(opts.Kind)
			if !kind.Valid() {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s: unknown document kind %q", ErrCodeArgs, opts.Kind))
			}
			s, err := newSession(opts.RootOptions, cmd)
			if err != nil {
				return err
			}
			if err := s.reader.CreateDocument(commandContext(cmd), args[0], kind); err != nil {
				_ = newFormatter(opts.RootOptions, cmd).Error(ErrCodeGeneric, err.Error(), nil)
				return WrapExitError(ExitCommandError, "create document", err)
			}
			return newFormatter(opts.RootOptions, cmd).Success(fmt.Sprintf("document %s (%s) ready", args[0], kind))
		},
	}
	create.Flags().StringVar(&opts.Kind, "kind", string(store.KindMessage), "document kind (message|readonly)")
	cmd.AddCommand(create)

	return cmd
}

// commandContext returns the command's context, or Background outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
