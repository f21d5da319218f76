package cli

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/roach88/savetray/internal/ledger"
	"github.com/roach88/savetray/internal/store"
	"github.com/roach88/savetray/internal/tray"
)

// ShowOutput is the show command's payload.
type ShowOutput struct {
	Document string        `json:"document"`
	Ledger   ledger.Ledger `json:"ledger"`
	CanClear bool          `json:"canClear"`

	// Succeeded is listed only when damage_chat is enabled.
	Succeeded []ledger.EntityRef `json:"succeeded,omitempty"`
}

// NewShowCommand creates the show command.
func NewShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <document>",
		Short: "Print a document's tray",
		Long: `Print a document's tray as read through this peer.

With damage_chat enabled in the config, participants whose check succeeded
are listed as well.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(rootOpts, args[0], cmd)
		},
	}
}

func runShow(opts *RootOptions, documentRef string, cmd *cobra.Command) error {
	s, err := newSession(opts, cmd)
	if err != nil {
		return err
	}
	f := newFormatter(opts, cmd)

	l, err := s.service.Snapshot(commandContext(cmd), documentRef)
	if err != nil {
		_ = f.Error(ErrCodeRead, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read tray", err)
	}

	out := ShowOutput{Document: documentRef, Ledger: l, CanClear: tray.CanClear(l)}
	if s.cfg.DamageChat {
		out.Succeeded = ledger.SucceededRefs(l)
	}

	if opts.Format == "json" {
		return f.Success(out)
	}
	writeTray(f.Writer, out)
	return nil
}

func writeTray(w io.Writer, out ShowOutput) {
	l := out.Ledger
	fmt.Fprintf(w, "Tray for %s\n", out.Document)
	fmt.Fprintf(w, "Check: %s  Threshold: %s\n", optString(l.CheckKind), optFloat(l.Threshold))
	fmt.Fprintln(w)

	if l.IsEmpty() {
		fmt.Fprintln(w, "  (no participants)")
	}
	for _, r := range l.Records {
		fmt.Fprintf(w, "  %-24s %-20s %6s  %s\n", r.EntityRef, r.DisplayName, optFloat(r.OutcomeValue), verdict(r))
	}

	if out.Succeeded != nil {
		fmt.Fprintln(w)
		fmt.Fprintf(w, "Succeeded: %d\n", len(out.Succeeded))
		for _, ref := range out.Succeeded {
			fmt.Fprintf(w, "  %s\n", ref)
		}
	}
}

func verdict(r ledger.Record) string {
	switch {
	case !r.Resolved():
		return "pending"
	case r.OutcomeSuccess == nil:
		return "unknown"
	case *r.OutcomeSuccess:
		return "success"
	default:
		return "failure"
	}
}

func optString(p *string) string {
	if p == nil {
		return "-"
	}
	return *p
}

func optFloat(p *float64) string {
	if p == nil {
		return "-"
	}
	return strconv.FormatFloat(*p, 'f', -1, 64)
}

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history <document>",
		Short: "List the writes applied to a document on this coordinator",
		Long: `List the commit log of a document from a coordinator's database, in the
order the writes were applied.

Example:
  savetray history ChatMessage.abc --db ./savetray.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (default: config database)")

	return cmd
}

func runHistory(opts *HistoryOptions, documentRef string, cmd *cobra.Command) error {
	f := newFormatter(opts.RootOptions, cmd)

	dbPath := opts.Database
	if dbPath == "" {
		cfg, err := loadConfig(opts.RootOptions, cmd)
		if err != nil {
			return err
		}
		dbPath = cfg.Database
	}
	if err := requireFile(dbPath); err != nil {
		return err
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	entries, err := st.History(commandContext(cmd), documentRef)
	if err != nil {
		_ = f.Error(ErrCodeRead, err.Error(), nil)
		return WrapExitError(ExitCommandError, "read history", err)
	}

	if opts.Format == "json" {
		return f.Success(entries)
	}

	fmt.Fprintf(f.Writer, "History for %s\n", documentRef)
	if len(entries) == 0 {
		fmt.Fprintln(f.Writer, "  (no writes)")
		return nil
	}
	for _, e := range entries {
		fmt.Fprintf(f.Writer, "  [%d] %s %s/%s %s\n", e.Seq, e.RequestID, e.Namespace, e.Key, truncateID(e.Revision))
		f.VerboseLog("       revision: %s", e.Revision)
	}
	return nil
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}
