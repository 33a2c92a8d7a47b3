package zeronotes

import (
	"context"
)

// SyncReport summarizes one completed sync cycle.
type SyncReport struct {
	// Pulled is the number of remote changes applied locally.
	Pulled int
	// Pushed is the number of local changes the server accepted.
	Pushed int
	// Conflicts is the number of entities where both sides had changed.
	// Conflicts are resolved (newest edit wins) but always surfaced here.
	Conflicts int
	// SyncVersion is the account version counter after the cycle.
	SyncVersion uint64
}

// Sync runs one full pull-merge-push cycle and returns its report.
// At most one cycle runs at a time; a concurrent call returns
// ErrSyncInProgress immediately rather than queueing.
func (c *Client) Sync(ctx context.Context) (*SyncReport, error) {
	if _, err := c.currentSession(); err != nil {
		return nil, err
	}

	report, err := c.engine.Sync(ctx)
	if err != nil {
		return nil, wrapError(err)
	}

	out := &SyncReport{
		Pulled:      report.Pulled,
		Pushed:      report.Pushed,
		Conflicts:   report.Conflicts,
		SyncVersion: report.SyncVersion,
	}
	if out.Pulled > 0 || out.Conflicts > 0 {
		c.subs.notify(out)
	}
	return out, nil
}

// SyncInProgress reports whether a sync cycle is currently running.
func (c *Client) SyncInProgress() bool {
	return c.engine.InProgress()
}

// TestConnection verifies the sync target is reachable.
func (c *Client) TestConnection(ctx context.Context) error {
	if err := c.checkClosed(); err != nil {
		return err
	}
	return wrapError(c.transport.TestConnection(ctx))
}

// WatchChanges returns a channel that receives a report after every
// sync cycle that applied remote changes. The channel is not closed
// when the context is cancelled; select on ctx.Done() to detect
// cancellation.
//
// Example:
//
//	ctx, cancel := context.WithCancel(context.Background())
//	defer cancel()
//
//	ch := client.WatchChanges(ctx)
//	for {
//	    select {
//	    case <-ctx.Done():
//	        return
//	    case report := <-ch:
//	        fmt.Printf("pulled %d changes\n", report.Pulled)
//	    }
//	}
func (c *Client) WatchChanges(ctx context.Context) <-chan *SyncReport {
	ch := make(chan *SyncReport, 16)

	unsub := c.subs.subscribe(func(report *SyncReport) {
		// Spawn goroutine to guarantee delivery without blocking the
		// sync cycle.
		go func(r *SyncReport) { ch <- r }(report)
	})

	// We intentionally do not close(ch) to avoid a race where an
	// in-flight callback tries to send after close.
	go func() {
		<-ctx.Done()
		unsub()
	}()

	return ch
}
