// Package errs defines the error taxonomy for the semantic query compiler:
// CubeDefinitionError, ValidationError, PlanError, ExecutionError, and
// CacheError. Every error the compiler raises to a caller is one of these
// five, so callers can pattern-match with errors.As instead of parsing
// messages.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// CubeDefinitionError is raised at registration time when a cube's
// definition is structurally invalid: an unknown, self-referential, or
// cyclic calculated-measure dependency.
type CubeDefinitionError struct {
	Cube    string
	Measure string
	Reason  string
}

func (e *CubeDefinitionError) Error() string {
	return fmt.Sprintf("cube %q: measure %q: %s", e.Cube, e.Measure, e.Reason)
}

// ValidationError is raised when a query references an unknown cube or
// field, or otherwise violates a structural rule. It accumulates every
// violation found, not just the first.
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return fmt.Sprintf("invalid query: %s", e.Errors[0])
	}
	return fmt.Sprintf("invalid query (%d errors): %s", len(e.Errors), strings.Join(e.Errors, "; "))
}

// Add appends a violation. A nil *ValidationError is not usable; callers
// construct the zero value directly.
func (e *ValidationError) Add(format string, args ...any) {
	e.Errors = append(e.Errors, fmt.Sprintf(format, args...))
}

// Empty reports whether no violation has been recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Errors) == 0
}

// PlanError is raised when the planner cannot produce a valid plan, most
// commonly because no join path connects two referenced cubes.
type PlanError struct {
	From, To string
	Reason   string
}

func (e *PlanError) Error() string {
	if e.From != "" || e.To != "" {
		return fmt.Sprintf("cannot plan query: no path from %q to %q: %s", e.From, e.To, e.Reason)
	}
	return fmt.Sprintf("cannot plan query: %s", e.Reason)
}

// ExecutionError wraps a driver failure. Message concatenates the
// original error text with the driver's code/detail/hint when the
// underlying dialect adapter was able to extract them, per spec §7: the
// caller sees one error whose message is stable enough to pattern-match
// in tests, but the full chain is still reachable via errors.Unwrap.
type ExecutionError struct {
	Cause  error
	Code   string
	Detail string
	Hint   string
}

func (e *ExecutionError) Error() string {
	var b strings.Builder
	b.WriteString("execution failed: ")
	if e.Cause != nil {
		b.WriteString(e.Cause.Error())
	} else {
		b.WriteString("unknown error")
	}
	if e.Code != "" {
		fmt.Fprintf(&b, " (code=%s)", e.Code)
	}
	if e.Detail != "" {
		fmt.Fprintf(&b, " (detail=%s)", e.Detail)
	}
	if e.Hint != "" {
		fmt.Fprintf(&b, " (hint=%s)", e.Hint)
	}
	return b.String()
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// CacheError never propagates to a caller; it is only ever surfaced
// through the optional OnError callback an Executor is configured with
// (spec §4.13 step 2, step 11). It is still a typed error so that
// callback implementations can distinguish cache failures from other
// diagnostics.
type CacheError struct {
	Op    string // "get" | "set" | "delete" | "deletePattern"
	Cause error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s failed: %v", e.Op, e.Cause)
}

func (e *CacheError) Unwrap() error { return e.Cause }

// As is a thin convenience wrapper over errors.As, exported so callers
// don't need to import both errs and errors just to type-switch.
func As[T error](err error, target *T) bool {
	return errors.As(err, target)
}
