package coordinator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNextRetryDelay_ScalesLinearlyWithAttempt(t *testing.T) {
	wait, ok := nextRetryDelay(time.Second, 3, 0)
	assert.True(t, ok)
	assert.Equal(t, time.Second, wait)

	wait, ok = nextRetryDelay(time.Second, 3, 1)
	assert.True(t, ok)
	assert.Equal(t, 2*time.Second, wait)

	wait, ok = nextRetryDelay(time.Second, 3, 2)
	assert.True(t, ok)
	assert.Equal(t, 3*time.Second, wait)
}

func TestNextRetryDelay_StopsAfterMaxAttempts(t *testing.T) {
	_, ok := nextRetryDelay(time.Second, 3, 3)
	assert.False(t, ok)
}

func TestLinearBackOff_ResetRestartsCount(t *testing.T) {
	b := newLinearBackOff(time.Second, 2)
	b.NextBackOff()
	b.NextBackOff()
	b.Reset()
	assert.Equal(t, time.Second, b.NextBackOff())
}
