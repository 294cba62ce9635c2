// Package workerpool implements a fixed-size pool of goroutines fed by one
// unbounded FIFO queue.
//
// Submit never waits for a job to run. Workers take one entry at a time under
// the queue lock and run it outside the lock, so at most Size jobs execute at
// once. Shutdown appends one termination entry per worker, which means every
// job submitted before Shutdown is dequeued and finished before the workers
// exit. A panicking job is recovered and logged; its worker keeps serving.
//
// Usage:
//
//	pool := workerpool.New(4, workerpool.WithLogger(log))
//	if err := pool.Submit(func() { handle(conn) }); err != nil {
//	    conn.Close()
//	}
//	...
//	pool.Shutdown()
package workerpool
