package intents

import (
	"testing"

	"github.com/angelmondragon/ledgerpay-backend/pkg/enums"
)

func TestTransitionAppliesNonTerminal(t *testing.T) {
	tests := []struct {
		current  enums.IntentStatus
		incoming enums.IntentStatus
		reason   enums.ReasonCode
	}{
		{enums.IntentStatusRequiresPaymentMethod, enums.IntentStatusRequiresConfirmation, enums.ReasonGatewayUpdate},
		{enums.IntentStatusRequiresConfirmation, enums.IntentStatusRequiresAction, enums.ReasonActionRequired},
		{enums.IntentStatusProcessing, enums.IntentStatusSucceeded, enums.ReasonPaymentSucceeded},
		{enums.IntentStatusProcessing, enums.IntentStatusFailed, enums.ReasonPaymentFailed},
		{enums.IntentStatusFailed, enums.IntentStatusRequiresConfirmation, enums.ReasonGatewayUpdate},
		{enums.IntentStatusRequiresCapture, enums.IntentStatusCanceled, enums.ReasonIntentCanceled},
	}
	for _, tt := range tests {
		decision, err := Transition(tt.current, tt.incoming)
		if err != nil {
			t.Fatalf("%s -> %s: unexpected error %v", tt.current, tt.incoming, err)
		}
		if !decision.Apply {
			t.Fatalf("%s -> %s: expected apply", tt.current, tt.incoming)
		}
		if decision.Reason != tt.reason {
			t.Fatalf("%s -> %s: expected reason %s got %s", tt.current, tt.incoming, tt.reason, decision.Reason)
		}
	}
}

func TestTransitionTerminalNoop(t *testing.T) {
	for _, current := range []enums.IntentStatus{enums.IntentStatusSucceeded, enums.IntentStatusCanceled} {
		for _, incoming := range []enums.IntentStatus{
			enums.IntentStatusProcessing,
			enums.IntentStatusSucceeded,
			enums.IntentStatusFailed,
			enums.IntentStatusCanceled,
		} {
			decision, err := Transition(current, incoming)
			if err != nil {
				t.Fatalf("%s -> %s: unexpected error %v", current, incoming, err)
			}
			if decision.Apply || !decision.TerminalNoop {
				t.Fatalf("%s -> %s: expected terminal no-op", current, incoming)
			}
		}
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	if _, err := Transition(enums.IntentStatusProcessing, enums.IntentStatus("exploded")); err == nil {
		t.Fatal("expected error for unknown incoming status")
	}
}

func TestTriggersReconciliation(t *testing.T) {
	if !TriggersReconciliation(enums.IntentStatusSucceeded) {
		t.Fatal("succeeded must trigger reconciliation")
	}
	if TriggersReconciliation(enums.IntentStatusProcessing) {
		t.Fatal("processing must not trigger reconciliation")
	}
}
