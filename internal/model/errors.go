package model

import (
	"errors"
	"fmt"
)

// Sentinels for the data-integrity error taxonomy. Every typed error below
// matches its sentinel with errors.Is.
var (
	ErrSelfInteraction     = errors.New("self interaction")
	ErrUnknownMember       = errors.New("unknown member")
	ErrAxisMismatch        = errors.New("axis mismatch")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrEmptyPeriodSet      = errors.New("empty period set")
	ErrDuplicateNormalized = errors.New("duplicate normalized key")
)

// SelfInteractionError reports an event whose two sides are the same member.
type SelfInteractionError struct {
	Kind   EventKind
	Member MemberKey
	Period Period
}

func (e *SelfInteractionError) Error() string {
	return fmt.Sprintf("%s: %s event with %s on both sides (period %s)", ErrSelfInteraction, e.Kind, e.Member, e.Period)
}

func (e *SelfInteractionError) Is(target error) bool { return target == ErrSelfInteraction }

// UnknownMemberError reports an event participant missing from the roster
// the event is being counted against.
type UnknownMemberError struct {
	Member MemberKey
	Period Period
}

func (e *UnknownMemberError) Error() string {
	return fmt.Sprintf("%s: %s not on roster for period %s", ErrUnknownMember, e.Member, e.Period)
}

func (e *UnknownMemberError) Is(target error) bool { return target == ErrUnknownMember }

// AxisMismatchError reports matrices combined or compared on different axes.
type AxisMismatchError struct {
	Op          string
	Left, Right int // axis lengths
}

func (e *AxisMismatchError) Error() string {
	if e.Left == e.Right {
		return fmt.Sprintf("%s: %s: member order differs", ErrAxisMismatch, e.Op)
	}
	return fmt.Sprintf("%s: %s: %d vs %d members", ErrAxisMismatch, e.Op, e.Left, e.Right)
}

func (e *AxisMismatchError) Is(target error) bool { return target == ErrAxisMismatch }

// InvalidAmountError reports a negative or non-numeric TYFCB amount.
type InvalidAmountError struct {
	Value  string
	Member MemberKey
	Line   int
}

func (e *InvalidAmountError) Error() string {
	msg := fmt.Sprintf("%s: %q", ErrInvalidAmount, e.Value)
	if e.Member != "" {
		msg += fmt.Sprintf(" for %s", e.Member)
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", e.Line)
	}
	return msg
}

func (e *InvalidAmountError) Is(target error) bool { return target == ErrInvalidAmount }

// EmptyPeriodSetError reports an aggregation or comparison over zero periods.
type EmptyPeriodSetError struct {
	Op string
}

func (e *EmptyPeriodSetError) Error() string {
	return fmt.Sprintf("%s: %s needs at least one period", ErrEmptyPeriodSet, e.Op)
}

func (e *EmptyPeriodSetError) Is(target error) bool { return target == ErrEmptyPeriodSet }

// DuplicateNormalizedKeyError reports two distinct members whose names
// normalize to the same key with no alias separating them.
type DuplicateNormalizedKeyError struct {
	Normalized string
	Existing   MemberKey
	Incoming   MemberKey
	RawName    string
}

func (e *DuplicateNormalizedKeyError) Error() string {
	return fmt.Sprintf("%s: %q (%q) already belongs to %s, cannot assign %s without an alias",
		ErrDuplicateNormalized, e.RawName, e.Normalized, e.Existing, e.Incoming)
}

func (e *DuplicateNormalizedKeyError) Is(target error) bool { return target == ErrDuplicateNormalized }
