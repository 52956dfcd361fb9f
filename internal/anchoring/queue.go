package anchoring

import (
	"context"

	"laurel/internal/certificate/models"
	dErrors "laurel/pkg/domain-errors"
)

// item carries a certificate through the queue with its delivery attempt
// count, so retries are bounded.
type item struct {
	cert     *models.Certificate
	attempts int
}

// Queue is the in-process buffer between the coordinator and the anchoring
// worker. Implements the coordinator's AnchorQueue port.
type Queue struct {
	inbox chan item
}

// NewQueue builds a queue holding at most size pending certificates.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 256
	}
	return &Queue{inbox: make(chan item, size)}
}

// EnqueueRegistered hands a freshly registered certificate to the worker.
// A full queue surfaces as retryable; the certificate stays unanchored and
// a later submission replay or operator action can re-enqueue it.
func (q *Queue) EnqueueRegistered(_ context.Context, cert *models.Certificate) error {
	return q.put(item{cert: cert})
}

func (q *Queue) put(it item) error {
	select {
	case q.inbox <- it:
		return nil
	default:
		return dErrors.New(dErrors.CodeUnavailable, "anchor queue is full")
	}
}

// Close stops accepting certificates and lets the worker drain.
func (q *Queue) Close() {
	close(q.inbox)
}
