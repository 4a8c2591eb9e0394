package game

import "fmt"

// Kind is a machine-readable failure category. Every command failure maps to
// exactly one kind so the transport layer can pick a status code without
// inspecting reasons.
type Kind string

const (
	// KindValidation covers malformed input: empty content, bad field values.
	KindValidation Kind = "validation"

	// KindPhase covers commands that are not valid in the current phase.
	KindPhase Kind = "phase_violation"

	// KindAuthorization covers callers lacking the required role or membership.
	KindAuthorization Kind = "authorization"

	// KindCapacity covers full rooms.
	KindCapacity Kind = "capacity"

	// KindConflict covers claimed characters, already-decided actions and
	// rooms already linked to a session.
	KindConflict Kind = "conflict"

	// KindNotFound covers unknown room, session, member or action ids.
	KindNotFound Kind = "not_found"

	// KindUpstream covers a failed or timed-out content generation call.
	KindUpstream Kind = "upstream"
)

// Error is a typed command failure. It always carries enough information for
// the transport boundary to display it.
type Error struct {
	Kind   Kind
	Reason string
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Reason
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Reason: fmt.Sprintf(format, args...)}
}

// KindOf extracts the failure kind from an error, defaulting to KindUpstream
// for errors that did not originate in the coordinator.
func KindOf(err error) Kind {
	if e, ok := err.(*Error); ok {
		return e.Kind
	}
	return KindUpstream
}
