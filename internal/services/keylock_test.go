package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyLockSerializesSameKey(t *testing.T) {
	kl := newKeyLock()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := kl.Lock("post/1")
			defer unlock()
			counter++
		}()
	}
	wg.Wait()
	assert.Equal(t, 100, counter)
}

func TestKeyLockIndependentKeys(t *testing.T) {
	kl := newKeyLock()

	unlockA := kl.Lock("post/a")
	// a different key must not block
	done := make(chan struct{})
	go func() {
		unlockB := kl.Lock("post/b")
		unlockB()
		close(done)
	}()
	<-done
	unlockA()
}

func TestKeyLockReleasesEntries(t *testing.T) {
	kl := newKeyLock()

	unlock := kl.Lock("post/x")
	unlock()

	kl.mu.Lock()
	defer kl.mu.Unlock()
	assert.Empty(t, kl.locks)
}
