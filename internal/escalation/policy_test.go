package escalation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDecide(t *testing.T) {
	policy := DefaultPolicy()

	tests := []struct {
		name          string
		postponeCount int
		elapsed       time.Duration
		want          Decision
	}{
		{"fresh dose", 0, 5 * time.Minute, DecisionNone},
		{"one postponement, early", 1, 10 * time.Minute, DecisionNone},
		{"many postponements but early", 5, 19 * time.Minute, DecisionNone},
		{"never postponed, outstanding long", 0, 25 * time.Minute, DecisionNotify},
		{"below notify threshold", 2, 25 * time.Minute, DecisionNone},
		{"notify threshold reached", 3, 25 * time.Minute, DecisionNotify},
		{"critical threshold reached", 4, 35 * time.Minute, DecisionNotifyAndCall},
		{"far past critical", 7, 2 * time.Hour, DecisionNotifyAndCall},
		{"exactly at elapsed floor", 3, 20 * time.Minute, DecisionNotify},
		{"one below floor", 3, 20*time.Minute - time.Second, DecisionNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := policy.Decide(tt.postponeCount, tt.elapsed)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecideIsPure(t *testing.T) {
	policy := DefaultPolicy()

	first := policy.Decide(4, 30*time.Minute)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, policy.Decide(4, 30*time.Minute))
	}
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "none", DecisionNone.String())
	assert.Equal(t, "notify_contact", DecisionNotify.String())
	assert.Equal(t, "notify_and_call", DecisionNotifyAndCall.String())
}
