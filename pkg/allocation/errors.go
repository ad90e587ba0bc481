package allocation

import (
	"errors"
	"fmt"

	"github.com/limaJavier/roomallocation/pkg/model"
)

var (
	// ErrInvalidInput marks malformed or referentially broken input. Nothing is allocated when it is returned.
	ErrInvalidInput = errors.New("invalid allocation input")

	// ErrInternalConsistency marks an engine defect: the engine tried to reserve an occupied room or professor.
	ErrInternalConsistency = errors.New("internal consistency failure")

	// ErrRunAborted is returned along with a partial report when the run was cancelled between demands
	ErrRunAborted = errors.New("allocation run aborted")
)

// InputError describes which piece of input is malformed
type InputError struct {
	Field  string
	Reason string
}

func (err *InputError) Error() string {
	return fmt.Sprintf("invalid input at %v: %v", err.Field, err.Reason)
}

func (err *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func inputErrorf(field string, format string, args ...any) *InputError {
	return &InputError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConflictError is raised by the AvailabilityIndex when a room or a professor is already occupied
type ConflictError struct {
	Kind      ConflictKind
	Slot      model.TimeSlot
	Room      uint64
	Professor uint64
	Holder    uint64 // Demand currently occupying the resource
	Demand    uint64 // Demand that attempted the reservation
}

func (err *ConflictError) Error() string {
	switch err.Kind {
	case ProfessorDoubleBooking:
		return fmt.Sprintf("professor %v is already teaching demand %v at %v, cannot reserve it for demand %v", err.Professor, err.Holder, err.Slot, err.Demand)
	default:
		return fmt.Sprintf("room %v is already occupied by demand %v at %v, cannot reserve it for demand %v", err.Room, err.Holder, err.Slot, err.Demand)
	}
}

// UnplacedReason explains why a demand did not get a room
type UnplacedReason string

const (
	NoEligibleRoom  UnplacedReason = "NO_ELIGIBLE_ROOM"
	NoAvailableSlot UnplacedReason = "NO_AVAILABLE_SLOT"
	RunAborted      UnplacedReason = "RUN_ABORTED"
)
