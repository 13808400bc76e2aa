package identity

import (
	"sort"
	"time"

	"cda/internal/staging"
)

// Result is the output of one resolution pass
type Result struct {
	Identities []Identity
	Unresolved []Candidate
	Conflicts  []Conflict
	Index      *Index
}

// Resolver applies an ordered rule cascade to every candidate
type Resolver struct {
	rules []Rule
}

// NewResolver builds a resolver; without rules it uses DefaultRules
func NewResolver(rules ...Rule) *Resolver {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Resolver{rules: rules}
}

// contribution is one source row asserting identifiers for a canonical id
type contribution struct {
	canonicalID string
	rank        Rank
	rule        string
	confidence  float64
	name        string
	ids         [SlotCount]string
	order       int
}

type sourceRecord struct {
	slot      Slot
	key       string
	name      string
	crmLink   string
	rank      Rank
	createdAt time.Time
}

// sourceRecords lists the customer-like records of every source in slot order
func sourceRecords(snap *staging.Snapshot) []sourceRecord {
	var out []sourceRecord
	for _, a := range snap.Accounts {
		out = append(out, sourceRecord{SlotSalesforce, a.ID, a.Name, a.ID, RankCRM, a.CreatedAt})
	}
	for _, c := range snap.StripeCustomers {
		out = append(out, sourceRecord{SlotStripe, c.ID, c.Name, c.SalesforceAccountID, RankPaymentProcessor, c.CreatedAt})
	}
	for _, c := range snap.IntacctCustomers {
		out = append(out, sourceRecord{SlotIntacct, c.ID, c.Name, c.SalesforceAccountID, RankAccounting, c.CreatedAt})
	}
	for _, o := range snap.Organizations {
		rank := RankSupport
		if o.SalesforceAccountID != "" {
			rank = RankSupportViaCRM
		}
		out = append(out, sourceRecord{SlotZendesk, o.ID, o.Name, o.SalesforceAccountID, rank, o.CreatedAt})
	}
	for _, c := range snap.HarvestClients {
		out = append(out, sourceRecord{SlotHarvest, c.ID, c.Name, c.SalesforceAccountID, RankTimeTrackingViaCRM, c.CreatedAt})
	}
	for _, c := range snap.MixpanelCompanies {
		out = append(out, sourceRecord{SlotMixpanel, c.ID, c.Name, c.SalesforceAccountID, RankAnalyticsViaCRM, c.CreatedAt})
	}
	return out
}

// Resolve builds the canonical identity table from the seed and a staged snapshot
func (r *Resolver) Resolve(snap *staging.Snapshot, seeds []SeedRow) *Result {
	seedIdx := NewSeedIndex(seeds)
	result := &Result{}

	var rows []contribution
	spans := make(map[string]*span)
	observe := func(id string, t time.Time) {
		s, ok := spans[id]
		if !ok {
			s = &span{}
			spans[id] = s
		}
		s.add(t)
	}

	for _, s := range seeds {
		rows = append(rows, contribution{
			canonicalID: s.CanonicalID,
			rank:        RankGroundTruth,
			rule:        RuleGroundTruth,
			confidence:  1.0,
			name:        s.CustomerName,
			ids:         s.IDs,
			order:       len(rows),
		})
	}

	for _, rec := range sourceRecords(snap) {
		if rec.key == "" {
			continue
		}
		if owners := seedIdx.All(rec.slot, rec.key); len(owners) > 0 {
			for _, id := range owners {
				observe(id, rec.createdAt)
			}
			continue
		}

		c := Candidate{Slot: rec.slot, Key: rec.key, Name: rec.name, Rank: rec.rank, CRMLink: rec.crmLink, CreatedAt: rec.createdAt}
		m, ok := apply(r.rules, c, seedIdx)
		if !ok {
			result.Unresolved = append(result.Unresolved, c)
			continue
		}

		row := contribution{
			canonicalID: m.CanonicalID,
			rank:        rec.rank,
			rule:        m.Rule,
			confidence:  m.Confidence,
			name:        rec.name,
			order:       len(rows),
		}
		row.ids[rec.slot] = rec.key
		if m.Rule == RuleCRMLink && row.ids[SlotSalesforce] == "" {
			row.ids[SlotSalesforce] = rec.crmLink
		}
		rows = append(rows, row)
		observe(m.CanonicalID, rec.createdAt)
	}

	identities, values := collapse(rows)
	for i := range identities {
		if s, ok := spans[identities[i].CanonicalID]; ok {
			identities[i].FirstSeen = s.first
			identities[i].LastSeen = s.last
		}
	}

	result.Conflicts = flagConflicts(identities, values)
	result.Identities = identities
	result.Index = newIndex(identities, values)
	return result
}

// collapse merges rows sharing a canonical id. Slot values come from the union of
// rows; metadata from the lowest ranked row.
func collapse(rows []contribution) ([]Identity, map[string]*[SlotCount][]string) {
	groups := make(map[string][]contribution)
	for _, row := range rows {
		groups[row.canonicalID] = append(groups[row.canonicalID], row)
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	identities := make([]Identity, 0, len(ids))
	values := make(map[string]*[SlotCount][]string, len(ids))
	for _, id := range ids {
		group := groups[id]
		sort.SliceStable(group, func(i, j int) bool {
			if group[i].rank != group[j].rank {
				return group[i].rank < group[j].rank
			}
			return group[i].order < group[j].order
		})

		best := group[0]
		ident := Identity{
			CanonicalID: id,
			Rank:        best.rank,
			Rule:        best.rule,
			Confidence:  best.confidence,
			SourceRows:  len(group),
		}
		for _, row := range group {
			if row.name != "" {
				ident.CustomerName = row.name
				break
			}
		}

		distinct := &[SlotCount][]string{}
		for _, slot := range Slots {
			for _, row := range group {
				v := row.ids[slot]
				if v == "" || contains(distinct[slot], v) {
					continue
				}
				distinct[slot] = append(distinct[slot], v)
			}
			if len(distinct[slot]) > 0 {
				ident.IDs[slot] = distinct[slot][0]
			}
			if len(distinct[slot]) > 1 {
				ident.HasConflicts = true
				ident.ConflictSlots = append(ident.ConflictSlots, slot)
			}
		}

		identities = append(identities, ident)
		values[id] = distinct
	}
	return identities, values
}

// flagConflicts records within-slot conflicts and foreign ids shared between
// canonical ids. Shared ids flag every identity involved.
func flagConflicts(identities []Identity, values map[string]*[SlotCount][]string) []Conflict {
	var conflicts []Conflict
	byID := make(map[string]int, len(identities))
	for i, ident := range identities {
		byID[ident.CanonicalID] = i
		for _, slot := range ident.ConflictSlots {
			vals := append([]string(nil), values[ident.CanonicalID][slot]...)
			sort.Strings(vals)
			conflicts = append(conflicts, Conflict{
				Kind:         ConflictSlotValues,
				Slot:         slot,
				CanonicalIDs: []string{ident.CanonicalID},
				Values:       vals,
			})
		}
	}

	for _, slot := range Slots {
		owners := make(map[string][]string)
		for _, ident := range identities {
			for _, v := range values[ident.CanonicalID][slot] {
				owners[v] = append(owners[v], ident.CanonicalID)
			}
		}
		shared := make([]string, 0)
		for v, ids := range owners {
			if len(ids) > 1 {
				shared = append(shared, v)
			}
		}
		sort.Strings(shared)

		for _, v := range shared {
			ids := owners[v]
			for _, id := range ids {
				ident := &identities[byID[id]]
				ident.HasConflicts = true
				if !containsSlot(ident.ConflictSlots, slot) {
					ident.ConflictSlots = append(ident.ConflictSlots, slot)
					sort.Slice(ident.ConflictSlots, func(i, j int) bool { return ident.ConflictSlots[i] < ident.ConflictSlots[j] })
				}
			}
			conflicts = append(conflicts, Conflict{
				Kind:         ConflictSharedID,
				Slot:         slot,
				CanonicalIDs: ids,
				Values:       []string{v},
			})
		}
	}
	return conflicts
}

type span struct {
	first, last time.Time
}

func (s *span) add(t time.Time) {
	if isSentinel(t) {
		return
	}
	if s.first.IsZero() || t.Before(s.first) {
		s.first = t
	}
	if s.last.IsZero() || t.After(s.last) {
		s.last = t
	}
}

// isSentinel excludes missing and placeholder dates from first/last seen
func isSentinel(t time.Time) bool {
	return t.IsZero() || t.Year() <= 1900 || t.Year() >= 9999
}

func contains(vals []string, v string) bool {
	for _, x := range vals {
		if x == v {
			return true
		}
	}
	return false
}

func containsSlot(slots []Slot, s Slot) bool {
	for _, x := range slots {
		if x == s {
			return true
		}
	}
	return false
}
