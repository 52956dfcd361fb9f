// Package models defines the epoch aggregate.
package models

import (
	"fmt"
	"time"

	"laurel/internal/classifier"
	domainerrors "laurel/pkg/domain-errors"
	"laurel/pkg/platform/sentinel"
)

// Status is the epoch lifecycle state. Exactly one epoch is active at a
// time; all others are closed.
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// Epoch is a bounded period of token emission.
//
// Invariants:
//   - EmissionBudget >= 0 always
//   - Indices are contiguous starting at 0
//   - The founder epoch (index 0) is created exactly once and never re-entered
//   - Thresholds strictly increase with epoch index, except the founder
//     epoch's privileged near-zero table
//
// The ledger store is the sole mutator of EmissionBudget; every change goes
// through CanReserve/ApplyReserve under the store's exclusive access.
type Epoch struct {
	Index          uint64                    `json:"index"`
	Status         Status                    `json:"status"`
	StartedAt      time.Time                 `json:"started_at"`
	ClosedAt       *time.Time                `json:"closed_at,omitempty"`
	InitialBudget  int64                     `json:"initial_budget"`
	EmissionBudget int64                     `json:"emission_budget"`
	Thresholds     classifier.ThresholdTable `json:"thresholds"`
	DecayFactor    float64                   `json:"decay_factor"`
}

// New constructs an active epoch, validating its threshold table.
func New(index uint64, startedAt time.Time, budget int64, thresholds classifier.ThresholdTable, decayFactor float64) (*Epoch, error) {
	if budget < 0 {
		return nil, domainerrors.New(domainerrors.CodeInvariantViolation,
			fmt.Sprintf("epoch %d budget must be non-negative, got %d", index, budget))
	}
	if err := thresholds.Validate(); err != nil {
		return nil, domainerrors.New(domainerrors.CodeInvariantViolation, err.Error())
	}
	return &Epoch{
		Index:          index,
		Status:         StatusActive,
		StartedAt:      startedAt,
		InitialBudget:  budget,
		EmissionBudget: budget,
		Thresholds:     thresholds.Clone(),
		DecayFactor:    decayFactor,
	}, nil
}

func (e *Epoch) IsActive() bool {
	return e.Status == StatusActive
}

// CanReserve checks whether amount can be debited from the remaining
// budget. Reservations against a closed epoch are a sequencing bug;
// a budget shortfall is the transient condition that triggers an advance.
func (e *Epoch) CanReserve(amount int64) error {
	if amount <= 0 {
		return domainerrors.New(domainerrors.CodeValidation,
			fmt.Sprintf("reserve amount must be positive, got %d", amount))
	}
	if !e.IsActive() {
		return domainerrors.New(domainerrors.CodeInvariantViolation,
			fmt.Sprintf("epoch %d is closed", e.Index))
	}
	if amount > e.EmissionBudget {
		return fmt.Errorf("reserve %d from epoch %d with %d remaining: %w",
			amount, e.Index, e.EmissionBudget, sentinel.ErrInsufficient)
	}
	return nil
}

// ApplyReserve debits the budget. Call CanReserve first under the same
// exclusive section.
func (e *Epoch) ApplyReserve(amount int64) {
	e.EmissionBudget -= amount
}

// CanClose checks the active → closed transition.
func (e *Epoch) CanClose() error {
	if !e.IsActive() {
		return domainerrors.New(domainerrors.CodeInvariantViolation,
			fmt.Sprintf("epoch %d is already closed", e.Index))
	}
	return nil
}

// ApplyClose transitions the epoch to closed.
func (e *Epoch) ApplyClose(now time.Time) {
	e.Status = StatusClosed
	e.ClosedAt = &now
}

// Clone returns a deep copy so store internals never leak to callers.
func (e *Epoch) Clone() *Epoch {
	out := *e
	out.Thresholds = e.Thresholds.Clone()
	if e.ClosedAt != nil {
		closedAt := *e.ClosedAt
		out.ClosedAt = &closedAt
	}
	return &out
}
