package runtime

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKeyedMutex_SerializesPerKey(t *testing.T) {
	req := require.New(t)
	km := NewKeyedMutex()

	const goroutines = 32
	counter := 0

	var wg sync.WaitGroup
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("call-1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()

	req.Equal(goroutines, counter)
}

func TestKeyedMutex_IndependentKeys(t *testing.T) {
	req := require.New(t)
	km := NewKeyedMutex()

	unlockA := km.Lock("call-a")

	// A different key must not block behind call-a.
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("call-b")
		unlockB()
		close(done)
	}()
	<-done

	unlockA()

	// Entries are cleaned up once released.
	km.mu.Lock()
	req.Empty(km.locks)
	km.mu.Unlock()
}
