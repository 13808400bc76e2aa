// Package identity merges per-source customer records into one canonical identity
// per real customer.
package identity

import (
	"strings"
	"time"
)

// Slot is a foreign identifier position on a canonical identity
type Slot int

const (
	SlotSalesforce Slot = iota
	SlotStripe
	SlotIntacct
	SlotZendesk
	SlotHarvest
	SlotJira
	SlotMixpanel

	SlotCount = 7
)

var slotNames = [SlotCount]string{"salesforce", "stripe", "intacct", "zendesk", "harvest", "jira", "mixpanel"}

// Slots lists every slot in fixed order
var Slots = []Slot{SlotSalesforce, SlotStripe, SlotIntacct, SlotZendesk, SlotHarvest, SlotJira, SlotMixpanel}

func (s Slot) String() string {
	if s < 0 || int(s) >= SlotCount {
		return "unknown"
	}
	return slotNames[s]
}

// Prefix is the upper-case source name used in synthetic canonical ids
func (s Slot) Prefix() string {
	return strings.ToUpper(s.String())
}

// Rank orders sources by reliability; the lowest rank wins
type Rank int

const (
	RankGroundTruth        Rank = 1
	RankSupportViaCRM      Rank = 2
	RankCRM                Rank = 3
	RankPaymentProcessor   Rank = 4
	RankAccounting         Rank = 5
	RankSupport            Rank = 6
	RankTimeTrackingViaCRM Rank = 7
	RankAnalyticsViaCRM    Rank = 8
)

// mintsSynthetic reports whether candidates of this rank may fall back to a synthetic id
func (r Rank) mintsSynthetic() bool {
	return r >= RankCRM && r <= RankSupport
}

// SeedRow is one ground-truth mapping
type SeedRow struct {
	CanonicalID  string
	CustomerName string
	IDs          [SlotCount]string
}

// Candidate is a source record whose key is absent from the ground truth in its own slot
type Candidate struct {
	Slot      Slot
	Key       string
	Name      string
	Rank      Rank
	CRMLink   string
	CreatedAt time.Time
}

// Match is the outcome of a matching rule
type Match struct {
	CanonicalID string
	Confidence  float64
	Rule        string
}

// Identity is one canonical customer
type Identity struct {
	CanonicalID   string
	CustomerName  string
	IDs           [SlotCount]string
	Rank          Rank
	Rule          string
	Confidence    float64
	SourceRows    int
	HasConflicts  bool
	ConflictSlots []Slot
	FirstSeen     time.Time
	LastSeen      time.Time
}

// ID returns the identifier held in slot, or "" when absent
func (i Identity) ID(s Slot) string {
	return i.IDs[s]
}

// ConflictKind distinguishes the two ways an identity can be flagged
type ConflictKind string

const (
	// ConflictSlotValues: one slot carries several distinct values within an identity
	ConflictSlotValues ConflictKind = "SLOT_VALUES"
	// ConflictSharedID: one foreign id appears under several canonical ids
	ConflictSharedID ConflictKind = "SHARED_ID"
)

// Conflict is surfaced for manual review; it is never auto-resolved
type Conflict struct {
	Kind         ConflictKind
	Slot         Slot
	CanonicalIDs []string
	Values       []string
}
