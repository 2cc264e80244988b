// Package affinity runs work on a single, dedicated OS thread.
//
// Some native libraries require every call touching a resource to come from
// the thread that created it. An [Executor] owns one goroutine that is locked
// to its OS thread for its whole life and executes submitted jobs one at a
// time, in submission order. Callers block until their job has finished and
// receive its result on their own goroutine.
//
//	exec := affinity.New("wkhtmltox")
//	defer exec.Close()
//
//	version, err := affinity.Call(exec, func() (string, error) {
//	    return engine.Version(), nil
//	})
//
// Errors returned by a job are passed back unchanged. A panic inside a job is
// recovered on the worker, which keeps running, and re-raised in the caller
// as a *PanicError.
//
// There is no cancellation: once queued a job runs to completion. A job must
// not submit work to its own executor or close it; doing so deadlocks.
package affinity
