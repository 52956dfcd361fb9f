// Package audit defines the audit event model for the certification pipeline.
// Domain services emit events through a Publisher; stores and sinks fan them
// out to memory, Kafka, or whatever the deployment wires in.
package audit

import (
	"context"
	"time"
)

// EventCategory classifies audit events by their primary purpose.
// This enables different retention policies, storage backends, and routing.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory or economic significance:
	// certificate registrations, token allocations, anchor attachments.
	CategoryCompliance EventCategory = "compliance"

	// CategoryOperations covers events useful for debugging and operational
	// visibility: rejections, epoch advances, scorer failures.
	CategoryOperations EventCategory = "operations"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory `json:"category"`
	Timestamp time.Time     `json:"timestamp"`
	Action    string        `json:"action"`

	// ContributionID is the content address the event concerns.
	ContributionID string `json:"contribution_id,omitempty"`
	ContributorID  string `json:"contributor_id,omitempty"`

	// Tokenomics detail, populated where the action involves an allocation.
	EpochIndex uint64 `json:"epoch_index,omitempty"`
	Tier       string `json:"tier,omitempty"`
	Amount     int64  `json:"amount,omitempty"`

	// Ref is the on-chain reference for anchor events.
	Ref string `json:"ref,omitempty"`

	// Reason carries the classifier justification or a failure explanation.
	Reason string `json:"reason,omitempty"`

	// RequestID is the correlation ID from the HTTP request context.
	RequestID string `json:"request_id,omitempty"`
}

// AuditEvent names the actions the certification pipeline audits.
type AuditEvent string

const (
	EventCertificateRegistered    AuditEvent = "certificate_registered"
	EventCertificationRejected    AuditEvent = "certification_rejected"
	EventAllocationMade           AuditEvent = "allocation_made"
	EventEpochAdvanced            AuditEvent = "epoch_advanced"
	EventAnchorAttached           AuditEvent = "anchor_attached"
	EventAnchorFailed             AuditEvent = "anchor_failed"
	EventCertificationUnavailable AuditEvent = "certification_unavailable"
)

// Emitter is the interface domain services use to record events.
type Emitter interface {
	Emit(ctx context.Context, event Event) error
}

// Sink accepts events for delivery. Sinks do not support queries.
type Sink interface {
	Append(ctx context.Context, event Event) error
}

// Store is a queryable sink, used by the publisher's List passthrough and by
// the operator audit read.
type Store interface {
	Sink
	ListByContribution(ctx context.Context, contributionID string) ([]Event, error)
	ListRecent(ctx context.Context, limit int) ([]Event, error)
}
