package stepup

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBaselineShouldLearnResidualThreshold(t *testing.T) {
	assert.True(t, baselineShouldLearnResidual(10))
	assert.False(t, baselineShouldLearnResidual(11))
}

func TestNoopWebAuthnFailsClosed(t *testing.T) {
	w := NoopWebAuthn{}
	ok, err := w.FinishAuthentication("principal-1", nil)
	assert.NoError(t, err)
	assert.False(t, ok)
}

func TestDecisionKindsAreDistinct(t *testing.T) {
	assert.NotEqual(t, DecisionAllow, DecisionChallenge)
	assert.NotEqual(t, DecisionChallenge, DecisionBlock)
}
