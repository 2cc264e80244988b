package affinity

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	e := New("test")
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestInvokeReturnsJobError(t *testing.T) {
	e := newTestExecutor(t)
	want := errors.New("conversion failed")
	err := e.Invoke(func() error { return want })
	assert.Same(t, want, err)
}

func TestCallAndApply(t *testing.T) {
	e := newTestExecutor(t)

	v, err := Call(e, func() (string, error) { return "0.12.6", nil })
	require.NoError(t, err)
	assert.Equal(t, "0.12.6", v)

	n, err := Apply(e, func(s string) (int, error) { return len(s), nil }, "<html></html>")
	require.NoError(t, err)
	assert.Equal(t, 13, n)
}

func TestPanicIsRaisedInCaller(t *testing.T) {
	e := newTestExecutor(t)

	func() {
		defer func() {
			r := recover()
			require.NotNil(t, r)
			pe, ok := r.(*PanicError)
			require.True(t, ok, "recovered %T", r)
			assert.Equal(t, "boom", pe.Value)
			assert.NotEmpty(t, pe.Stack)
		}()
		_ = e.Invoke(func() error { panic("boom") })
	}()

	// The worker survives a panicking job.
	assert.NoError(t, e.Invoke(func() error { return nil }))
}

func TestJobsRunInSubmissionOrder(t *testing.T) {
	e := newTestExecutor(t)
	const n = 16

	gate := make(chan struct{})
	running := make(chan struct{})
	var first sync.WaitGroup
	first.Add(1)
	go func() {
		defer first.Done()
		_ = e.Invoke(func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Invoke(func() error {
				mu.Lock()
				order = append(order, i)
				mu.Unlock()
				return nil
			})
		}()
		require.Eventually(t, func() bool { return e.Pending() == i }, time.Second, time.Millisecond)
	}

	close(gate)
	first.Wait()
	wg.Wait()

	want := make([]int, n)
	for i := range want {
		want[i] = i + 1
	}
	assert.Equal(t, want, order)
	assert.Zero(t, e.Pending())
}

func TestJobsNeverOverlap(t *testing.T) {
	e := newTestExecutor(t)
	const callers = 32

	var inside, maxInside, runs atomic.Int32
	var wg sync.WaitGroup
	for range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = e.Invoke(func() error {
				cur := inside.Add(1)
				for {
					m := maxInside.Load()
					if cur <= m || maxInside.CompareAndSwap(m, cur) {
						break
					}
				}
				time.Sleep(100 * time.Microsecond)
				inside.Add(-1)
				runs.Add(1)
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(callers), runs.Load())
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestCloseDrainsQueue(t *testing.T) {
	e := New("drain")

	gate := make(chan struct{})
	running := make(chan struct{})
	go func() {
		_ = e.Invoke(func() error {
			close(running)
			<-gate
			return nil
		})
	}()
	<-running

	var ran atomic.Bool
	result := make(chan error, 1)
	go func() {
		result <- e.Invoke(func() error {
			ran.Store(true)
			return nil
		})
	}()
	require.Eventually(t, func() bool { return e.Pending() == 1 }, time.Second, time.Millisecond)

	closed := make(chan struct{})
	go func() {
		_ = e.Close()
		close(closed)
	}()
	close(gate)

	<-closed
	assert.NoError(t, <-result)
	assert.True(t, ran.Load(), "queued job should run before Close returns")
}

func TestInvokeAfterClose(t *testing.T) {
	e := New("closed")
	require.NoError(t, e.Close())
	require.NoError(t, e.Close())

	err := e.Invoke(func() error { return nil })
	assert.ErrorIs(t, err, ErrClosed)

	_, err = Call(e, func() (int, error) { return 1, nil })
	assert.ErrorIs(t, err, ErrClosed)
}

func TestPanicErrorUnwrap(t *testing.T) {
	cause := errors.New("nil handle")
	pe := &PanicError{Value: cause}
	assert.ErrorIs(t, pe, cause)
	assert.Contains(t, pe.Error(), "nil handle")
	assert.Nil(t, (&PanicError{Value: 42}).Unwrap())
}
