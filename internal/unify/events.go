// Package unify normalizes cost and revenue bearing source records into two fixed
// schemas tagged with canonical customer ids.
package unify

import (
	"time"

	"github.com/shopspring/decimal"
)

type WorkType string

const (
	WorkDelivery    WorkType = "DELIVERY"
	WorkSupport     WorkType = "SUPPORT"
	WorkEngineering WorkType = "ENGINEERING"
)

// AllocationClass is SHARED only for engineering work with no support ticket link
type AllocationClass string

const (
	AllocationDirect AllocationClass = "DIRECT"
	AllocationShared AllocationClass = "SHARED"
)

// CostEvent is one unit of attributable work
type CostEvent struct {
	EventID         string
	CanonicalID     string
	ActivityDate    time.Time
	WorkType        WorkType
	Hours           decimal.Decimal
	CostGBP         decimal.Decimal
	Source          string
	AllocationClass AllocationClass
	ProjectID       string
	TicketID        string
	SupportTier     int
	Billable        bool
}

// RevenueType partitions revenue events. Each event carries exactly one type; cash
// and GAAP bases are separate rows and are never summed together.
type RevenueType string

const (
	RevenueCash           RevenueType = "CASH"
	RevenueAR             RevenueType = "AR"
	RevenueGAAPRecognized RevenueType = "GAAP_RECOGNIZED"
	RevenueGAAPDeferred   RevenueType = "GAAP_DEFERRED"
)

type Direction string

const (
	Credit Direction = "CREDIT"
	Debit  Direction = "DEBIT"
)

// RevenueEvent is one recognition or cash movement. Amount is positive for credits
// and negative for debits.
type RevenueEvent struct {
	EventID     string
	CanonicalID string
	EventDate   time.Time
	RevenueType RevenueType
	Amount      decimal.Decimal
	Direction   Direction
	Source      string
	Currency    string
}

// TicketFact is a resolved support ticket
type TicketFact struct {
	TicketID    string
	CanonicalID string
	Priority    string
	Status      string
	CreatedAt   time.Time
	SolvedAt    time.Time
}

// HighSeverity reports urgent and high priority tickets
func (t TicketFact) HighSeverity() bool {
	return t.Priority == "urgent" || t.Priority == "high"
}

// OpenAt reports whether the ticket was unresolved at t
func (t TicketFact) OpenAt(at time.Time) bool {
	if t.CreatedAt.IsZero() || t.CreatedAt.After(at) {
		return false
	}
	if !t.SolvedAt.IsZero() {
		return t.SolvedAt.After(at)
	}
	switch t.Status {
	case "solved", "closed":
		return false
	}
	return true
}

// ActiveDay is one day on which a customer used the product
type ActiveDay struct {
	CanonicalID string
	Day         time.Time
}

// Receivable is an issued invoice with its payment history
type Receivable struct {
	InvoiceID   string
	CanonicalID string
	Amount      decimal.Decimal
	IssuedAt    time.Time
	DueDate     time.Time
	PaidAt      time.Time
}

// OpenAt reports whether the invoice was issued and unpaid at t
func (r Receivable) OpenAt(at time.Time) bool {
	if r.IssuedAt.IsZero() || r.IssuedAt.After(at) {
		return false
	}
	return r.PaidAt.IsZero() || r.PaidAt.After(at)
}

// Due is the due date, or thirty days after issue when none was set
func (r Receivable) Due() time.Time {
	if !r.DueDate.IsZero() {
		return r.DueDate
	}
	return r.IssuedAt.AddDate(0, 0, 30)
}

// Booking is a closed-won contract
type Booking struct {
	OpportunityID string
	CanonicalID   string
	Amount        decimal.Decimal
	Start         time.Time
	TermMonths    int
}

// ProjectFact is a resolved delivery project
type ProjectFact struct {
	ProjectID   string
	CanonicalID string
	Name        string
	BudgetHours decimal.Decimal
}

// Facts are the resolved activity records consumed by the metrics
type Facts struct {
	Tickets     []TicketFact
	ActiveDays  []ActiveDay
	Receivables []Receivable
	Bookings    []Booking
	Projects    []ProjectFact
}
