package admission

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAdmit_EnforcesCeiling(t *testing.T) {
	ctrl := NewController(2)

	slot1, ok := ctrl.Admit("client-a")
	require.True(t, ok)
	slot2, ok := ctrl.Admit("client-a")
	require.True(t, ok)
	assert.Equal(t, 2, ctrl.Count("client-a"))

	_, ok = ctrl.Admit("client-a")
	assert.False(t, ok, "third connection should be rejected")
	assert.Equal(t, 2, ctrl.Count("client-a"), "rejected admit must not change the count")

	// A different identity has its own budget.
	slot3, ok := ctrl.Admit("client-b")
	require.True(t, ok)

	slot1.Release()
	slot2.Release()
	slot3.Release()
}

func TestRelease_RemovesIdentityAtZero(t *testing.T) {
	ctrl := NewController(5)

	slot1, ok := ctrl.Admit("client-a")
	require.True(t, ok)
	slot2, ok := ctrl.Admit("client-a")
	require.True(t, ok)
	assert.Equal(t, 1, ctrl.ActiveIdentities())

	slot1.Release()
	assert.Equal(t, 1, ctrl.Count("client-a"))
	assert.Equal(t, 1, ctrl.ActiveIdentities())

	slot2.Release()
	assert.Equal(t, 0, ctrl.Count("client-a"))
	assert.Equal(t, 0, ctrl.ActiveIdentities(), "identity must leave no residue at zero")
}

func TestRelease_Idempotent(t *testing.T) {
	ctrl := NewController(3)

	slotA, ok := ctrl.Admit("client-a")
	require.True(t, ok)
	_, ok = ctrl.Admit("client-a")
	require.True(t, ok)

	slotA.Release()
	slotA.Release()
	slotA.Release()

	assert.Equal(t, 1, ctrl.Count("client-a"), "double release must not free another session's slot")
}

func TestAdmit_ConcurrentNeverExceedsCeiling(t *testing.T) {
	const limit = 10
	const attempts = 100

	ctrl := NewController(limit)
	var admitted atomic.Int64
	var slots sync.Map

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			<-start
			if slot, ok := ctrl.Admit("client-a"); ok {
				admitted.Add(1)
				slots.Store(n, slot)
			}
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int64(limit), admitted.Load())
	assert.Equal(t, limit, ctrl.Count("client-a"))

	slots.Range(func(_, value any) bool {
		value.(*Slot).Release()
		return true
	})
	assert.Equal(t, 0, ctrl.Count("client-a"))
	assert.Equal(t, 0, ctrl.ActiveIdentities())
}

func TestAdmit_IndependentIdentities(t *testing.T) {
	ctrl := NewController(1)

	for i := 0; i < 20; i++ {
		_, ok := ctrl.Admit(fmt.Sprintf("client-%d", i))
		require.True(t, ok)
	}
	assert.Equal(t, 20, ctrl.ActiveIdentities())
}
