package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/savetray/internal/delegate"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Write refused, scenarios failed, invalid config file
	ExitCommandError = 2 // Command error (bad arguments, unreadable config, peer unreachable)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric = "E001"
	ErrCodeConfig  = "E002" // configuration missing or invalid
	ErrCodeArgs    = "E003" // malformed arguments
	ErrCodeCommit  = "E101" // write refused or not delivered
	ErrCodeRead    = "E102" // ledger or history could not be read
	ErrCodeIntent  = "E103" // intent could not be carried out
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`              // "E001", "E101", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// CommitOutput describes the outcome of one ledger mutation.
type CommitOutput struct {
	Op       string          `json:"op"`
	Document string          `json:"document"`
	Outcome  string          `json:"outcome"` // "ok" | "noop" | "failed"
	Reason   delegate.Reason `json:"reason,omitempty"`
}

// String renders the text form.
func (o CommitOutput) String() string {
	switch o.Outcome {
	case "noop":
		return fmt.Sprintf("%s %s: nothing to commit", o.Op, o.Document)
	case "failed":
		return fmt.Sprintf("%s %s: failed (%s)", o.Op, o.Document, o.Reason)
	default:
		return fmt.Sprintf("%s %s: ok", o.Op, o.Document)
	}
}

// reportResult prints a mutation result. A nil result means nothing was
// sent. Refused or undelivered writes exit 1.
func reportResult(f *OutputFormatter, op, documentRef string, res *delegate.Result) error {
	out := CommitOutput{Op: op, Document: documentRef, Outcome: "ok"}
	switch {
	case res == nil:
		out.Outcome = "noop"
	case !res.OK:
		out.Outcome = "failed"
		out.Reason = res.Reason
	}

	if out.Outcome != "failed" {
		return f.Success(out)
	}

	_ = f.Error(ErrCodeCommit, out.String(), map[string]any{
		"reason":    out.Reason,
		"retryable": out.Reason.Retryable(),
	})
	return NewExitError(ExitFailure, out.String())
}
