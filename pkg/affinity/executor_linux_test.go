package affinity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/sys/unix"
)

func TestJobsShareOneThread(t *testing.T) {
	e := newTestExecutor(t)

	var (
		mu   sync.Mutex
		tids = map[int]int{}
		wg   sync.WaitGroup
	)
	for range 64 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Invoke(func() error {
				mu.Lock()
				tids[unix.Gettid()]++
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Len(t, tids, 1, "jobs ran on threads %v", tids)
}
