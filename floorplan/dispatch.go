package floorplan

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"
)

// dispatcher runs remote calls off the caller's goroutine. Local state has
// already been committed when a call is dispatched, so the caller never
// waits on the table service and no timeout is imposed on it.
type dispatcher struct {
	wg        sync.WaitGroup
	onFailure func(*PersistenceFailure)
	log       logrus.FieldLogger
}

func newDispatcher(log logrus.FieldLogger, onFailure func(*PersistenceFailure)) *dispatcher {
	return &dispatcher{onFailure: onFailure, log: log}
}

func (d *dispatcher) run(ctx context.Context, op string, tableIDs []uint, fn func(context.Context) error) {
	if ctx == nil {
		ctx = context.Background()
	}
	// Request contexts end with the HTTP handler; the call must outlive it.
	ctx = context.WithoutCancel(ctx)

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := fn(ctx); err != nil {
			d.log.WithFields(logrus.Fields{"op": op, "table_ids": tableIDs}).WithError(err).Warn("table service call failed")
			d.onFailure(&PersistenceFailure{Op: op, TableIDs: tableIDs, Err: err})
		}
	}()
}

func (d *dispatcher) wait() {
	d.wg.Wait()
}
