package utils

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestSpinLock(t *testing.T) {
	var (
		lock       SpinLock
		wg         sync.WaitGroup
		numWorkers = 10
		counter    int
	)

	lock.Lock()
	require.False(t, lock.TryLock(), "expected TryLock to fail while the lock is held")

	wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				lock.Lock()
				counter++
				lock.Unlock()
			}
		}()
	}

	<-time.After(50 * time.Millisecond)
	require.Zero(t, counter)

	lock.Unlock()
	wg.Wait()

	require.Equal(t, numWorkers*100, counter)
	require.True(t, lock.TryLock())
	lock.Unlock()
}

func TestOptionalSpinLock(t *testing.T) {
	disabled := OptionalSpinLock{}
	disabled.Lock()
	require.True(t, disabled.TryLock())
	disabled.Unlock()

	enabled := OptionalSpinLock{UseLock: true}
	enabled.Lock()
	require.False(t, enabled.TryLock())
	enabled.Unlock()
	require.True(t, enabled.TryLock())
	enabled.Unlock()
}
