package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/roach88/intrack/internal/config"
	"github.com/roach88/intrack/internal/editor"
	"github.com/roach88/intrack/internal/event"
	"github.com/roach88/intrack/internal/eventlog"
	"github.com/roach88/intrack/internal/tracker"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failure (verify found a difference, editor aborted, I/O error)
	ExitCommandError = 2 // Command error (bad arguments, unknown issue, not initialized)
)

// Error codes reported in CLI output.
const (
	ErrCodeGeneric        = "E001" // Generic/unknown error
	ErrCodeNotInitialized = "E002" // No .intrack directory
	ErrCodeConfig         = "E003" // Invalid configuration
	ErrCodeNotFound       = "E004" // Unknown issue or id
	ErrCodeAmbiguous      = "E005" // Id prefix matches several ids
	ErrCodeInvalidArg     = "E006" // Invalid argument or payload
	ErrCodeWriteFailed    = "E007" // File read/write error
	ErrCodeEditor         = "E008" // Editor failed or aborted
	ErrCodeDiverged       = "E009" // Replays disagree
)

// errNotInitialized is returned outside an initialized repository.
var errNotInitialized = errors.New("not an intrack repository (run 'intrack init')")

// errInvalidArg marks a malformed command argument.
var errInvalidArg = errors.New("invalid argument")

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
	Message string // Error message
	Err     error  // Underlying error (optional)

	reported bool // already written by an OutputFormatter
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
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// classify maps an error to its output code and exit code.
func classify(err error) (string, int) {
	var (
		cfgErr *config.ValidationError
		subErr *editor.SubprocessError
		ioErr  *eventlog.IOError
	)
	switch {
	case errors.Is(err, errNotInitialized):
		return ErrCodeNotInitialized, ExitCommandError
	case errors.As(err, &cfgErr):
		return ErrCodeConfig, ExitCommandError
	case errors.Is(err, event.ErrNoMatch), errors.Is(err, tracker.ErrUnknownIssue):
		return ErrCodeNotFound, ExitCommandError
	case errors.Is(err, event.ErrAmbiguousPrefix):
		return ErrCodeAmbiguous, ExitCommandError
	case errors.Is(err, errInvalidArg), errors.Is(err, event.ErrInvalidPayload):
		return ErrCodeInvalidArg, ExitCommandError
	case errors.As(err, &subErr), errors.Is(err, editor.ErrEmpty), errors.Is(err, editor.ErrUnchanged):
		return ErrCodeEditor, ExitFailure
	case errors.As(err, &ioErr):
		return ErrCodeWriteFailed, ExitFailure
	}
	return ErrCodeGeneric, ExitFailure
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
	Code    string `json:"code"`              // "E001", "E002", etc.
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

	// Human-readable text output
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

	// Human-readable errors go to the diagnostic stream.
	w := f.GetErrWriter()
	fmt.Fprintf(w, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(w, "Details: %v\n", details)
	}
	return nil
}

// Fail reports err and returns it as an ExitError carrying the matching
// exit code. ExitErrors pass through unchanged.
func (f *OutputFormatter) Fail(err error) error {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	code, exit := classify(err)
	_ = f.Error(code, err.Error(), nil)
	return &ExitError{Code: exit, Message: code, Err: err, reported: true}
}

// Report writes err and returns an ExitError with the given exit code.
func (f *OutputFormatter) Report(exit int, code, message string, details any) error {
	_ = f.Error(code, message, details)
	return &ExitError{Code: exit, Message: message, reported: true}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
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
