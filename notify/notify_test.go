package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/trustflow/types"
)

func TestBus_DeliversEvents(t *testing.T) {
	t.Parallel()
	bus := NewBus(4, zap.NewNop())

	bus.Notify(&TrustLevelChanged{
		SubjectID:  "agent-1",
		From:       types.TrustLevelObserved,
		To:         types.TrustLevelAssisted,
		Reason:     "eligibility met",
		Timestamp_: time.Now(),
	})

	select {
	case ev := <-bus.Events():
		require.Equal(t, EventTrustLevelChanged, ev.Type())
		changed := ev.(*TrustLevelChanged)
		assert.Equal(t, types.TrustLevelAssisted, changed.To)
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestBus_FullBufferDropsWithoutBlocking(t *testing.T) {
	t.Parallel()
	bus := NewBus(1, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			bus.Notify(&TaskBlocked{TaskID: "t", Reason: "no eligible agent", Timestamp_: time.Now()})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked on full buffer")
	}
}

func TestLogNotifier_DoesNotPanic(t *testing.T) {
	t.Parallel()
	n := NewLogNotifier(zap.NewNop())
	n.Notify(&AnomalyDetected{SubjectID: "agent-1", Detector: "decision_latency", Timestamp_: time.Now()})
}
