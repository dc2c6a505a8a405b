package hooks

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSetHooks_FiresOnlyInstalledCallback(t *testing.T) {
	defer SetHooks(nil)

	var gotStart, gotEnd Event
	startFired, endFired := false, false

	SetHooks(&Hooks{
		RunStart: func(ev Event) { startFired = true; gotStart = ev },
		RunEnd:   func(ev Event) { endFired = true; gotEnd = ev },
	})

	Fire(Event{Point: RunStart, RunID: "r1"})
	assert.True(t, startFired)
	assert.Equal(t, "r1", gotStart.RunID)
	assert.False(t, endFired)

	Fire(Event{Point: RunEnd, RunID: "r1"})
	assert.True(t, endFired)
	assert.Equal(t, "r1", gotEnd.RunID)
}

func TestSetHooks_NilClears(t *testing.T) {
	defer SetHooks(nil)

	fired := false
	SetHooks(&Hooks{RunStart: func(ev Event) { fired = true }})
	SetHooks(nil)

	Fire(Event{Point: RunStart})
	assert.False(t, fired)
	assert.Nil(t, GetHooks())
}

func TestFire_NoInstalledHooksIsNoOp(t *testing.T) {
	defer SetHooks(nil)
	SetHooks(nil)
	assert.NotPanics(t, func() {
		Fire(Event{Point: ToolStart, RunID: "x", ToolCallID: "call_1"})
	})
}

func TestFire_UnsetCallbackOnInstalledHooksIsNoOp(t *testing.T) {
	defer SetHooks(nil)
	SetHooks(&Hooks{})
	assert.NotPanics(t, func() {
		Fire(Event{Point: IterStart})
	})
}

func TestOTelSubscriber_RunAndToolSpansDoNotPanic(t *testing.T) {
	defer SetHooks(nil)
	sub := NewOTelSubscriber()
	SetHooks(sub.Hooks())

	Fire(Event{Point: RunStart, RunID: "r1"})
	Fire(Event{Point: ToolStart, RunID: "r1", ToolCallID: "call_1", ToolName: "add"})
	Fire(Event{Point: ToolEnd, RunID: "r1", ToolCallID: "call_1", ToolName: "add", ToolError: true})
	Fire(Event{Point: RunEnd, RunID: "r1"})
}

// TestOTelSubscriber_ConcurrentRunsDoNotRaceOnSpans exercises two agent runs
// sharing one process-wide installed subscriber from distinct goroutines, as
// spec §5's concurrency model requires the hook bus to tolerate. Run with
// -race to catch an unguarded map write.
func TestOTelSubscriber_ConcurrentRunsDoNotRaceOnSpans(t *testing.T) {
	defer SetHooks(nil)
	sub := NewOTelSubscriber()
	SetHooks(sub.Hooks())

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runID := fmt.Sprintf("r%d", i)
			Fire(Event{Point: RunStart, RunID: runID})
			Fire(Event{Point: ToolStart, RunID: runID, ToolCallID: "call_1", ToolName: "add"})
			Fire(Event{Point: ToolEnd, RunID: runID, ToolCallID: "call_1", ToolName: "add"})
			Fire(Event{Point: RunEnd, RunID: runID})
		}(i)
	}
	wg.Wait()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	assert.Empty(t, sub.spans, "every started span should have been ended and removed")
}
