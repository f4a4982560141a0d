// Package xerrors provides the sentinel errors, typed error values, and
// sysexits-style exit code mapping used across gitstack. Use
// errors.Is/errors.As against the sentinels and typed errors below
// rather than matching on error strings.
package xerrors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds, per spec.md §7.
var (
	// ErrUsage covers missing arguments, detached HEAD where a branch is
	// required, and a dirty working tree where dirtiness is forbidden.
	ErrUsage = errors.New("usage error")
	// ErrConfig covers invalid protected-branch patterns and malformed
	// configuration values.
	ErrConfig = errors.New("config error")
	// ErrRepository covers ref/object lookups and invalid revspecs.
	ErrRepository = errors.New("repository error")
	// ErrConflict covers cherry-pick/squash conflicts during a rewrite.
	ErrConflict = errors.New("rewrite conflict")
	// ErrProtected covers an attempt to amend/reword a protected or
	// fixup commit.
	ErrProtected = errors.New("protected commit")
	// ErrIO covers snapshot read/write failures.
	ErrIO = errors.New("io error")
	// ErrState covers an in-progress rebase/merge at verb entry.
	ErrState = errors.New("repository in incompatible state")
)

// Exit codes, sysexits-style, per spec.md §6.
const (
	ExitOK              = 0
	ExitUsage           = 64
	ExitServiceUnavail  = 69
	ExitFailure         = 70
	ExitConfig          = 78
)

// ConflictError reports that a batch's cherry-pick or squash produced a
// conflict, along with the branches left blocked as a result.
type ConflictError struct {
	Branch     string
	Dependents []string
	Err        error
}

func (e *ConflictError) Error() string {
	if len(e.Dependents) == 0 {
		return fmt.Sprintf("conflict rewriting %q: %v", e.Branch, e.Err)
	}
	return fmt.Sprintf("conflict rewriting %q (blocked: %v): %v", e.Branch, e.Dependents, e.Err)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// ProtectedCommitError reports an attempt to rewrite a protected or
// fixup commit.
type ProtectedCommitError struct {
	Message string
}

func (e *ProtectedCommitError) Error() string { return e.Message }

func (e *ProtectedCommitError) Unwrap() error { return ErrProtected }

// RepositoryError wraps a uniform repository-error code and message, as
// required by spec.md §4.1.
type RepositoryError struct {
	Code    string
	Message string
}

func (e *RepositoryError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *RepositoryError) Unwrap() error { return ErrRepository }

// NewRepositoryError builds a RepositoryError.
func NewRepositoryError(code, message string) *RepositoryError {
	return &RepositoryError{Code: code, Message: message}
}

// ExitCode maps an error to the sysexits-style code the CLI should
// exit with. A nil error maps to ExitOK.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage):
		return ExitUsage
	case errors.Is(err, ErrConfig):
		return ExitConfig
	case errors.Is(err, ErrState):
		return ExitUsage
	case errors.Is(err, ErrConflict), errors.Is(err, ErrProtected):
		return ExitFailure
	default:
		return ExitFailure
	}
}
