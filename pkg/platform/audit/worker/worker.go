package worker

import (
	"context"

	audit "laurel/pkg/platform/audit"
)

// Worker consumes audit events from a channel and delivers them to a sink.
// It keeps background processing testable without wiring queue implementations.
type Worker struct {
	sink  audit.Sink
	inbox <-chan audit.Event
}

func NewWorker(sink audit.Sink, inbox <-chan audit.Event) *Worker {
	return &Worker{sink: sink, inbox: inbox}
}

func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.inbox:
			if !ok {
				return nil
			}
			if err := w.sink.Append(ctx, event); err != nil {
				return err
			}
		}
	}
}
