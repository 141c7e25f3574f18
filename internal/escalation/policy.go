package escalation

import "time"

// Decision is the outcome of evaluating an unconfirmed dose against the
// escalation thresholds.
type Decision int

const (
	// DecisionNone means keep monitoring, no outside contact yet.
	DecisionNone Decision = iota
	// DecisionNotify means send a message to the emergency channel.
	DecisionNotify
	// DecisionNotifyAndCall means message plus a phone call to the
	// resolved emergency contact.
	DecisionNotifyAndCall
)

func (d Decision) String() string {
	switch d {
	case DecisionNotify:
		return "notify_contact"
	case DecisionNotifyAndCall:
		return "notify_and_call"
	default:
		return "none"
	}
}

// Policy holds the escalation thresholds. The zero value is not useful;
// start from DefaultPolicy and tune.
type Policy struct {
	// EntryCount is the postponement count at which an escalation record
	// is opened and the dose starts being tracked.
	EntryCount int
	// NotifyCount is the postponement count at which the emergency
	// channel is messaged.
	NotifyCount int
	// CriticalCount is the postponement count at which a phone call is
	// placed on top of the message.
	CriticalCount int
	// MinElapsed is the floor on time since the original slot. Both the
	// count and the elapsed condition must hold, so a dose postponed
	// several times in rapid succession does not escalate without real
	// elapsed risk.
	MinElapsed time.Duration
}

// DefaultPolicy returns the reference thresholds.
func DefaultPolicy() Policy {
	return Policy{
		EntryCount:    2,
		NotifyCount:   3,
		CriticalCount: 4,
		MinElapsed:    20 * time.Minute,
	}
}

// Decide is a pure function of the postponement count and the time the dose
// has been outstanding since its original slot. A dose that was never
// postponed but has been outstanding past the floor still notifies the
// contact (the "not taken" case).
func (p Policy) Decide(postponeCount int, elapsed time.Duration) Decision {
	if elapsed < p.MinElapsed {
		return DecisionNone
	}
	switch {
	case postponeCount >= p.CriticalCount:
		return DecisionNotifyAndCall
	case postponeCount >= p.NotifyCount:
		return DecisionNotify
	case postponeCount == 0:
		return DecisionNotify
	default:
		return DecisionNone
	}
}
