// Package domain defines the typed identifiers shared across laurel.
//
// Typed IDs prevent cross-type assignment at compile time: a ContributorID can
// never be passed where a ContributionID is expected. Parse functions enforce
// validity at trust boundaries so stores and services can assume well-formed IDs.
package domain

import (
	"github.com/google/uuid"
	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"

	dErrors "laurel/pkg/domain-errors"
)

// ContributionID is the content address of a submitted contribution: a CIDv1
// over the raw document bytes. It is immutable and derived, never assigned.
type ContributionID struct {
	c cid.Cid
}

// DeriveContributionID computes the content address for raw contribution bytes
// using the raw multicodec and a sha2-256 multihash.
func DeriveContributionID(data []byte) ContributionID {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		// sha2-256 is always registered; Sum only fails on unknown codes.
		panic(err)
	}
	return ContributionID{c: cid.NewCidV1(cid.Raw, sum)}
}

// ParseContributionID validates and decodes a contribution ID string.
// Only CIDv1 is accepted; v0 CIDs are ambiguous across encodings.
func ParseContributionID(s string) (ContributionID, error) {
	if s == "" {
		return ContributionID{}, dErrors.New(dErrors.CodeInvalidInput, "contribution id is required")
	}
	c, err := cid.Decode(s)
	if err != nil {
		return ContributionID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "contribution id is not a valid CID")
	}
	if c.Version() != 1 {
		return ContributionID{}, dErrors.New(dErrors.CodeInvalidInput, "contribution id must be a CIDv1")
	}
	return ContributionID{c: c}, nil
}

func (id ContributionID) String() string {
	if !id.c.Defined() {
		return ""
	}
	return id.c.String()
}

// IsZero reports whether the ID is the zero value.
func (id ContributionID) IsZero() bool {
	return !id.c.Defined()
}

// MarshalText serializes the ID as its canonical CID string.
func (id ContributionID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ContributionID) UnmarshalText(data []byte) error {
	parsed, err := ParseContributionID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ContributorID identifies the account that submitted a contribution.
type ContributorID uuid.UUID

// ParseContributorID validates and decodes a contributor ID string.
func ParseContributorID(s string) (ContributorID, error) {
	if s == "" {
		return ContributorID{}, dErrors.New(dErrors.CodeInvalidInput, "contributor id is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return ContributorID{}, dErrors.Wrap(err, dErrors.CodeInvalidInput, "contributor id is not a valid UUID")
	}
	if u == uuid.Nil {
		return ContributorID{}, dErrors.New(dErrors.CodeInvalidInput, "contributor id cannot be the nil UUID")
	}
	return ContributorID(u), nil
}

func (id ContributorID) String() string {
	return uuid.UUID(id).String()
}

// IsZero reports whether the ID is the nil UUID.
func (id ContributorID) IsZero() bool {
	return uuid.UUID(id) == uuid.Nil
}

// MarshalText serializes the ID in canonical UUID form.
func (id ContributorID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *ContributorID) UnmarshalText(data []byte) error {
	parsed, err := ParseContributorID(string(data))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}
