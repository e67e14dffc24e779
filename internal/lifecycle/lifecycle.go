// Package lifecycle implements the review state machine for credit opportunities.
//
// Transitions are pure: they take an opportunity by value and return the updated
// copy. Persisting the result is the caller's job.
package lifecycle

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Veraticus/credit-engine/internal/common"
	"github.com/Veraticus/credit-engine/internal/model"
)

// Guard failures. They are always wrapped in a TransitionError.
var (
	ErrReasonRequired       = errors.New("rejection reason is required")
	ErrRetentionNotRequired = errors.New("retention was not required for this payment")
)

// ErrUnknownAction is returned by ParseAction for unrecognised verbs.
var ErrUnknownAction = errors.New("unknown action")

var transitions = map[model.CreditStatus][]model.CreditStatus{
	model.StatusIdentified: {model.StatusConfirmed, model.StatusRejected},
	model.StatusAnalyzing:  {model.StatusIdentified, model.StatusRejected},
	model.StatusConfirmed:  {model.StatusApproved},
	model.StatusApproved:   {model.StatusRecovered},
	model.StatusRejected:   nil,
	model.StatusRecovered:  nil,
}

// TransitionError reports a state change that is not allowed.
type TransitionError struct {
	Cause error
	From  model.CreditStatus
	To    model.CreditStatus
}

func (e *TransitionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid transition %s -> %s: %v", e.From, e.To, e.Cause)
	}
	return fmt.Sprintf("invalid transition %s -> %s", e.From, e.To)
}

// Unwrap exposes both ErrInvalidTransition and the guard cause.
func (e *TransitionError) Unwrap() []error {
	if e.Cause != nil {
		return []error{common.ErrInvalidTransition, e.Cause}
	}
	return []error{common.ErrInvalidTransition}
}

// Allowed lists the statuses reachable from the given status.
func Allowed(from model.CreditStatus) []model.CreditStatus {
	next := transitions[from]
	out := make([]model.CreditStatus, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the edge exists, ignoring guards.
func CanTransition(from, to model.CreditStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition moves opp to the target status. reason is only used, and then
// required, when rejecting.
func Transition(opp model.CreditOpportunity, to model.CreditStatus, reason string) (model.CreditOpportunity, error) {
	from := opp.Status
	if !CanTransition(from, to) {
		return opp, &TransitionError{From: from, To: to}
	}

	switch to {
	case model.StatusConfirmed:
		if !opp.RetentionRequired {
			return opp, &TransitionError{From: from, To: to, Cause: ErrRetentionNotRequired}
		}
	case model.StatusRejected:
		reason = strings.TrimSpace(reason)
		if reason == "" {
			return opp, &TransitionError{From: from, To: to, Cause: ErrReasonRequired}
		}
		opp.RejectionReason = reason
	}

	opp.Status = to
	return opp, nil
}

// Confirm marks an identified opportunity as a confirmed credit.
func Confirm(opp model.CreditOpportunity) (model.CreditOpportunity, error) {
	return Transition(opp, model.StatusConfirmed, "")
}

// Reject closes an identified or analyzing opportunity with a reason.
func Reject(opp model.CreditOpportunity, reason string) (model.CreditOpportunity, error) {
	return Transition(opp, model.StatusRejected, reason)
}

// Resolve returns an opportunity under analysis to identified.
func Resolve(opp model.CreditOpportunity) (model.CreditOpportunity, error) {
	return Transition(opp, model.StatusIdentified, "")
}

// Approve approves a confirmed credit. Authorization is checked by the caller.
func Approve(opp model.CreditOpportunity) (model.CreditOpportunity, error) {
	return Transition(opp, model.StatusApproved, "")
}

// Recover marks an approved credit as recovered.
func Recover(opp model.CreditOpportunity) (model.CreditOpportunity, error) {
	return Transition(opp, model.StatusRecovered, "")
}

// Action names accepted by ParseAction.
const (
	ActionConfirm = "confirm"
	ActionReject  = "reject"
	ActionResolve = "resolve"
	ActionApprove = "approve"
	ActionRecover = "recover"
)

// ParseAction maps a user-facing verb onto its target status.
func ParseAction(action string) (model.CreditStatus, error) {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case ActionConfirm:
		return model.StatusConfirmed, nil
	case ActionReject:
		return model.StatusRejected, nil
	case ActionResolve:
		return model.StatusIdentified, nil
	case ActionApprove:
		return model.StatusApproved, nil
	case ActionRecover:
		return model.StatusRecovered, nil
	default:
		return "", fmt.Errorf("%w %q", ErrUnknownAction, action)
	}
}
