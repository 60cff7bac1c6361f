package internal

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShutdownTriggerOnce(t *testing.T) {
	t.Parallel()

	s := NewShutdown()
	assert.Equal(t, StateRunning, s.State())
	assert.False(t, s.Requested())
	assert.Equal(t, ReasonNone, s.Reason())

	assert.True(t, s.Trigger(ReasonWrite))
	assert.False(t, s.Trigger(ReasonPeer))
	assert.False(t, s.Trigger(ReasonInterrupt))

	assert.True(t, s.Requested())
	assert.Equal(t, StateShutdownRequested, s.State())
	assert.Equal(t, ReasonWrite, s.Reason())

	select {
	case <-s.Notify():
	default:
		assert.Fail(t, "notify channel not closed")
	}
}

func TestShutdownConcurrentTrigger(t *testing.T) {
	t.Parallel()

	s := NewShutdown()

	var (
		wg  sync.WaitGroup
		won atomic.Int32
	)

	for i := range 64 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			if s.Trigger(Reason(i%5 + 1)) {
				won.Add(1)
			}
		}()
	}

	wg.Wait()

	assert.Equal(t, int32(1), won.Load())
	assert.NotEqual(t, ReasonNone, s.Reason())
}

func TestShutdownStates(t *testing.T) {
	t.Parallel()

	s := NewShutdown()

	assert.False(t, s.cancelling(), "cannot cancel before a trigger")

	s.Trigger(ReasonInterrupt)
	assert.True(t, s.cancelling())
	assert.Equal(t, StateCancelling, s.State())
	assert.False(t, s.cancelling())

	s.terminate()
	s.terminate()
	assert.Equal(t, StateTerminated, s.State())
	assert.False(t, s.Trigger(ReasonPeer))

	select {
	case <-s.Done():
	default:
		assert.Fail(t, "done channel not closed")
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "cancelling", StateCancelling.String())
	assert.Equal(t, "peer", ReasonPeer.String())
	assert.Equal(t, "stream-ended", ReasonStreamEnded.String())
}
