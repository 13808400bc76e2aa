package identity

import "sort"

// Rule names
const (
	RuleGroundTruth        = "ground-truth"
	RuleCRMLinkGroundTruth = "crm-link-ground-truth"
	RuleCRMLink            = "crm-link"
	RuleSynthetic          = "synthetic"
)

// Rule is one step of the matching cascade. Rules are pure: the same candidate and
// seed always produce the same match.
type Rule struct {
	Name  string
	Match func(c Candidate, seed *SeedIndex) (Match, bool)
}

// DefaultRules returns the cascade in priority order
func DefaultRules() []Rule {
	return []Rule{
		{Name: RuleCRMLinkGroundTruth, Match: matchCRMLinkGroundTruth},
		{Name: RuleCRMLink, Match: matchCRMLink},
		{Name: RuleSynthetic, Match: matchSynthetic},
	}
}

func matchCRMLinkGroundTruth(c Candidate, seed *SeedIndex) (Match, bool) {
	if c.CRMLink == "" {
		return Match{}, false
	}
	id, ok := seed.Lookup(SlotSalesforce, c.CRMLink)
	if !ok {
		return Match{}, false
	}
	return Match{CanonicalID: id, Confidence: 0.95, Rule: RuleCRMLinkGroundTruth}, true
}

func matchCRMLink(c Candidate, _ *SeedIndex) (Match, bool) {
	if c.CRMLink == "" {
		return Match{}, false
	}
	return Match{CanonicalID: SlotSalesforce.Prefix() + ":" + c.CRMLink, Confidence: 0.8, Rule: RuleCRMLink}, true
}

func matchSynthetic(c Candidate, _ *SeedIndex) (Match, bool) {
	if !c.Rank.mintsSynthetic() || c.Key == "" {
		return Match{}, false
	}
	return Match{CanonicalID: c.Slot.Prefix() + ":" + c.Key, Confidence: 0.5, Rule: RuleSynthetic}, true
}

// apply runs the rules in order and keeps the first match
func apply(rules []Rule, c Candidate, seed *SeedIndex) (Match, bool) {
	for _, r := range rules {
		if m, ok := r.Match(c, seed); ok {
			if m.Rule == "" {
				m.Rule = r.Name
			}
			return m, true
		}
	}
	return Match{}, false
}

// SeedIndex answers "which ground-truth identity holds this value in this slot"
type SeedIndex struct {
	bySlot [SlotCount]map[string][]string
}

// NewSeedIndex indexes every non-empty seed value
func NewSeedIndex(seeds []SeedRow) *SeedIndex {
	idx := &SeedIndex{}
	for i := range idx.bySlot {
		idx.bySlot[i] = make(map[string][]string)
	}
	for _, s := range seeds {
		for _, slot := range Slots {
			if v := s.IDs[slot]; v != "" {
				idx.bySlot[slot][v] = append(idx.bySlot[slot][v], s.CanonicalID)
			}
		}
	}
	for i := range idx.bySlot {
		for v, ids := range idx.bySlot[i] {
			sort.Strings(ids)
			idx.bySlot[i][v] = dedupeSorted(ids)
		}
	}
	return idx
}

// Lookup returns the smallest canonical id holding value in slot
func (s *SeedIndex) Lookup(slot Slot, value string) (string, bool) {
	ids := s.All(slot, value)
	if len(ids) == 0 {
		return "", false
	}
	return ids[0], true
}

// All returns every canonical id holding value in slot, sorted
func (s *SeedIndex) All(slot Slot, value string) []string {
	if value == "" {
		return nil
	}
	return s.bySlot[slot][value]
}

func dedupeSorted(ids []string) []string {
	out := ids[:0]
	for i, id := range ids {
		if i == 0 || id != ids[i-1] {
			out = append(out, id)
		}
	}
	return out
}
