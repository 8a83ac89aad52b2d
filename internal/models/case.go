package models

import (
	"time"

	"github.com/google/uuid"
)

type CaseType string

const (
	CaseTypeLost          CaseType = "lost"
	CaseTypeFound         CaseType = "found"
	CaseTypeMissingPerson CaseType = "missing_person"
	CaseTypePet           CaseType = "pet"
)

// IsLostSide reports whether the case describes something being searched
// for. Lost-side cases match against found cases and vice versa.
func (t CaseType) IsLostSide() bool {
	return t == CaseTypeLost || t == CaseTypeMissingPerson || t == CaseTypePet
}

// OppositeOf reports whether two case types may be paired in a match.
func (t CaseType) OppositeOf(other CaseType) bool {
	return t.IsLostSide() != other.IsLostSide()
}

type CaseStatus string

const (
	CaseStatusOpen   CaseStatus = "open"
	CaseStatusClosed CaseStatus = "closed"
)

type Case struct {
	ID        uuid.UUID  `json:"id" db:"id"`
	Type      CaseType   `json:"type" db:"case_type"`
	Category  string     `json:"category" db:"category"`
	Title     string     `json:"title" db:"title"`
	Lat       *float64   `json:"lat,omitempty" db:"lat"`
	Lon       *float64   `json:"lon,omitempty" db:"lon"`
	Status    CaseStatus `json:"status" db:"status"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt time.Time  `json:"updated_at" db:"updated_at"`
}

// HasLocation reports whether both coordinates are set.
func (c *Case) HasLocation() bool {
	return c.Lat != nil && c.Lon != nil
}
