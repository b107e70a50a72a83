package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Sentinel error kinds shared by every layer. Callers match them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrNoCapacity          = errors.New("no capacity")
	ErrConstraintViolation = errors.New("constraint violation")
)

// Error carries the failing operation and the kind of failure.
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Kind != nil && e.Err != nil:
		fmt.Fprintf(&b, "%v: %v", e.Kind, e.Err)
	case e.Kind != nil:
		b.WriteString(e.Kind.Error())
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Is reports whether target is the kind of e.
func (e *Error) Is(target error) bool {
	return e.Kind != nil && target == e.Kind
}

func (e *Error) Unwrap() error { return e.Err }

// NewKind returns an error of the given kind raised by op.
func NewKind(op string, kind error, format string, args ...any) error {
	var err error
	if format != "" {
		err = fmt.Errorf(format, args...)
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// Wrap annotates err with op. The kind stays reachable through Unwrap.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Err: err}
}

// KindOf returns the sentinel kind carried by err, or nil.
func KindOf(err error) error {
	for _, kind := range []error{ErrValidation, ErrNotFound, ErrConflict, ErrNoCapacity, ErrConstraintViolation} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}

// ViolationError is returned when a commit would leave groups with warnings
// and the caller did not ask to override them.
type ViolationError struct {
	Op     string
	Report ConstraintReport
}

func (e *ViolationError) Error() string {
	groups := make([]int, 0, len(e.Report))
	for g, ws := range e.Report {
		if len(ws) > 0 {
			groups = append(groups, g)
		}
	}
	sort.Ints(groups)
	return fmt.Sprintf("%s: %v: %d warning(s) in groups %v", e.Op, ErrConstraintViolation, e.Report.Count(), groups)
}

// Is matches ErrConstraintViolation.
func (e *ViolationError) Is(target error) bool { return target == ErrConstraintViolation }
