// Package commands implements the CLI command structure using Cobra.
package commands

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/singlebase/singlebase-go/core"
)

// Exit codes
const (
	ExitSuccess    = 0
	ExitValidation = 1
	ExitBackend    = 2
	ExitNetwork    = 3
)

// exitError wraps an error with an exit code.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string {
	return e.err.Error()
}

func (e *exitError) Unwrap() error {
	return e.err
}

func (e *exitError) ExitCode() int {
	return e.code
}

func exitWithCode(code int, err error) error {
	return &exitError{code: code, err: err}
}

// ExitCode maps err to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	var re *core.ResultError
	if errors.As(err, &re) {
		return exitCodeForKind(re.Kind)
	}
	return ExitValidation
}

func exitCodeForKind(kind core.ErrorKind) int {
	switch kind {
	case core.KindTransport:
		return ExitNetwork
	case core.KindBackend:
		return ExitBackend
	default:
		return ExitValidation
	}
}

// reportError writes err to stderr, as JSON with --json.
func (a *App) reportError(err error) {
	var re *core.ResultError
	isResult := errors.As(err, &re)

	if a.jsonOutput {
		body := map[string]any{"type": "error", "message": err.Error()}
		switch {
		case isResult:
			body = map[string]any{
				"type":    string(re.Kind),
				"code":    re.Code,
				"message": re.Message,
				"status":  re.StatusCode,
			}
		case core.IsInvalidArgument(err):
			body["type"] = string(core.KindInvalidArgument)
		}

		enc := json.NewEncoder(a.stderr)
		enc.SetIndent("", "  ")
		_ = enc.Encode(map[string]any{"ok": false, "error": body})
		return
	}

	if isResult {
		fmt.Fprintf(a.stderr, "Error: %s %s: %s\n", re.Kind, re.Code, re.Message)
		if re.StatusCode != 0 {
			fmt.Fprintf(a.stderr, "  status: %d\n", re.StatusCode)
		}
		return
	}
	fmt.Fprintf(a.stderr, "Error: %v\n", err)
}

var defaultApp = NewApp()

// Execute runs the default app root command.
func Execute(ctx context.Context) error {
	return defaultApp.ExecuteContext(ctx)
}
