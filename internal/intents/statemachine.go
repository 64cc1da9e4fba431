package intents

import (
	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/ledgerpay-backend/pkg/errors"
)

// Decision is the outcome of evaluating an incoming status against the
// intent's current status.
type Decision struct {
	// Apply is true when the incoming status should overwrite the current one.
	Apply bool
	// TerminalNoop is true when the intent already reached succeeded or
	// canceled; the event is logged but the status stays untouched.
	TerminalNoop bool
	// Reason is the structured code recorded in the status history.
	Reason enums.ReasonCode
}

// Transition computes whether an incoming status may be applied. Succeeded and
// canceled are never overwritten once reached; every other state accepts the
// gateway's word as-is.
func Transition(current, incoming enums.IntentStatus) (Decision, error) {
	if !incoming.IsValid() {
		return Decision{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid intent status")
	}
	reason := reasonForStatus(incoming)
	if current.IsTerminal() {
		return Decision{TerminalNoop: true, Reason: reason}, nil
	}
	return Decision{Apply: true, Reason: reason}, nil
}

// TriggersReconciliation reports whether applying the status books a ledger entry.
func TriggersReconciliation(incoming enums.IntentStatus) bool {
	return incoming == enums.IntentStatusSucceeded
}

func reasonForStatus(incoming enums.IntentStatus) enums.ReasonCode {
	switch incoming {
	case enums.IntentStatusSucceeded:
		return enums.ReasonPaymentSucceeded
	case enums.IntentStatusFailed:
		return enums.ReasonPaymentFailed
	case enums.IntentStatusCanceled:
		return enums.ReasonIntentCanceled
	case enums.IntentStatusRequiresAction:
		return enums.ReasonActionRequired
	default:
		return enums.ReasonGatewayUpdate
	}
}
