//go:build !tinygo

package irq

import (
	"sync"
	"testing"
)

func TestDisableExcludesOtherGoroutines(t *testing.T) {
	var wg sync.WaitGroup
	counter := 0

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s := Disable()
				counter++
				Restore(s)
			}
		}()
	}
	wg.Wait()

	if counter != 8000 {
		t.Errorf("counter: got %d, want 8000", counter)
	}
}

func TestRestoreReleases(t *testing.T) {
	s := Disable()
	Restore(s)

	done := make(chan struct{})
	go func() {
		s := Disable()
		Restore(s)
		close(done)
	}()
	<-done
}
