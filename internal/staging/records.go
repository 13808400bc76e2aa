package staging

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a Salesforce account
type Account struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// Opportunity is a Salesforce opportunity
type Opportunity struct {
	ID            string
	AccountID     string
	Name          string
	StageName     string
	IsWon         bool
	Amount        decimal.Decimal
	CloseDate     time.Time
	ContractStart time.Time
	TermMonths    int
}

// StripeCustomer is a Stripe customer; SalesforceAccountID comes from its metadata
type StripeCustomer struct {
	ID                  string
	Name                string
	Email               string
	SalesforceAccountID string
	CreatedAt           time.Time
}

// Invoice is a Stripe invoice with amounts in major units
type Invoice struct {
	ID              string
	CustomerID      string
	Status          string
	AmountDue       decimal.Decimal
	AmountPaid      decimal.Decimal
	AmountRemaining decimal.Decimal
	Currency        string
	CreatedAt       time.Time
	DueDate         time.Time
	PaidAt          time.Time
}

type Charge struct {
	ID         string
	CustomerID string
	Amount     decimal.Decimal
	Currency   string
	CreatedAt  time.Time
}

type Refund struct {
	ID        string
	ChargeID  string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	CreatedAt time.Time
}

type Dispute struct {
	ID        string
	ChargeID  string
	Amount    decimal.Decimal
	Currency  string
	Status    string
	CreatedAt time.Time
}

// IntacctCustomer is an accounting system customer
type IntacctCustomer struct {
	ID                  string
	Name                string
	SalesforceAccountID string
	CreatedAt           time.Time
}

// RevenueEntry is a recognized or deferred revenue line from the accounting system.
// TrType is 1 for a credit and -1 for a debit.
type RevenueEntry struct {
	ID         string
	CustomerID string
	Amount     decimal.Decimal
	TrType     int
	Posted     bool
	EntryDate  time.Time
	Currency   string
}

// Organization is a Zendesk organization
type Organization struct {
	ID                  string
	Name                string
	SalesforceAccountID string
	CreatedAt           time.Time
}

// Ticket is a Zendesk ticket with its logged handling time
type Ticket struct {
	ID               string
	OrganizationID   string
	Priority         string
	Status           string
	SupportTier      int
	TimeSpentMinutes decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	SolvedAt         time.Time
}

// HarvestClient is a time tracking client
type HarvestClient struct {
	ID                  string
	Name                string
	SalesforceAccountID string
	CreatedAt           time.Time
}

// Project is a Harvest project. BudgetHours is zero when the project has no budget.
type Project struct {
	ID          string
	ClientID    string
	Name        string
	BudgetHours decimal.Decimal
	CreatedAt   time.Time
}

type TimeEntry struct {
	ID        string
	ProjectID string
	ClientID  string
	SpentDate time.Time
	Hours     decimal.Decimal
	CostRate  decimal.Decimal
	Billable  bool
}

// Issue is a Jira issue. TicketID links it to a Zendesk ticket when the work was
// raised by support.
type Issue struct {
	Key              string
	AccountKey       string
	TicketID         string
	TimeSpentSeconds decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
	ResolvedAt       time.Time
}

// ActivityDate is the day the engineering effort is booked against
func (i Issue) ActivityDate() time.Time {
	switch {
	case !i.ResolvedAt.IsZero():
		return Day(i.ResolvedAt)
	case !i.UpdatedAt.IsZero():
		return Day(i.UpdatedAt)
	default:
		return Day(i.CreatedAt)
	}
}

// MixpanelCompany is an analytics group profile
type MixpanelCompany struct {
	ID                  string
	Name                string
	SalesforceAccountID string
	CreatedAt           time.Time
}

// Event is a product analytics event
type Event struct {
	ID        string
	CompanyID string
	Name      string
	Time      time.Time
}

// Snapshot is the deduplicated latest state of every landing table. Slices are
// ordered by record key.
type Snapshot struct {
	Accounts          []Account
	Opportunities     []Opportunity
	StripeCustomers   []StripeCustomer
	Invoices          []Invoice
	Charges           []Charge
	Refunds           []Refund
	Disputes          []Dispute
	IntacctCustomers  []IntacctCustomer
	RevenueEntries    []RevenueEntry
	Organizations     []Organization
	Tickets           []Ticket
	HarvestClients    []HarvestClient
	Projects          []Project
	TimeEntries       []TimeEntry
	Issues            []Issue
	MixpanelCompanies []MixpanelCompany
	Events            []Event
}
