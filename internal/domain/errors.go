package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repositories for missing records.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned by the certificate repository when an
// optimistic-version update matched zero rows. The caller must re-read.
var ErrVersionConflict = errors.New("version conflict")

// ErrNoTrades is returned by the resolver for an empty trade list.
var ErrNoTrades = errors.New("trade list is empty")

// ErrArchived rejects mutations on archived certificates.
var ErrArchived = errors.New("certificate is archived")

// ErrCertificateFinal rejects coverage changes once the hold-harmless
// agreement is fully executed.
var ErrCertificateFinal = errors.New("hold-harmless fully executed; approved coverage is final")

// UnknownTradeError marks a resolution input referencing a trade that is not
// in the catalog, or not placed in any tier of the program.
type UnknownTradeError struct {
	Trade   string
	Program string
}

func (e *UnknownTradeError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("trade %q has no tier in program %q", e.Trade, e.Program)
	}
	return fmt.Sprintf("unknown trade %q", e.Trade)
}

// InvalidTransitionError marks an attempted edge that does not exist in the
// machine at all.
type InvalidTransitionError struct {
	Machine   string
	Current   string
	Attempted string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("%s: no transition %s -> %s", e.Machine, e.Current, e.Attempted)
}

// WrongStateError marks an edge that exists in the machine but is not
// available from the current state.
type WrongStateError struct {
	Machine   string
	Current   string
	Attempted string
}

func (e *WrongStateError) Error() string {
	return fmt.Sprintf("%s: cannot reach %s from %s", e.Machine, e.Attempted, e.Current)
}

// UnauthorizedActorError marks an edge attempted by a role not authorized
// for it.
type UnauthorizedActorError struct {
	Role      Role
	Machine   string
	Attempted string
}

func (e *UnauthorizedActorError) Error() string {
	return fmt.Sprintf("%s: role %s may not perform transition to %s", e.Machine, e.Role, e.Attempted)
}
