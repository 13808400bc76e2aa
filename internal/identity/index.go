package identity

import "sort"

type indexEntry struct {
	canonicalID string
	rank        Rank
}

// Index maps foreign identifiers to canonical ids for downstream stages
type Index struct {
	bySlot     [SlotCount]map[string][]indexEntry
	identities map[string]Identity
}

func newIndex(identities []Identity, values map[string]*[SlotCount][]string) *Index {
	idx := &Index{identities: make(map[string]Identity, len(identities))}
	for i := range idx.bySlot {
		idx.bySlot[i] = make(map[string][]indexEntry)
	}

	for _, ident := range identities {
		idx.identities[ident.CanonicalID] = ident
		for _, slot := range Slots {
			for _, v := range values[ident.CanonicalID][slot] {
				idx.bySlot[slot][v] = append(idx.bySlot[slot][v], indexEntry{ident.CanonicalID, ident.Rank})
			}
		}
	}

	for _, m := range idx.bySlot {
		for _, entries := range m {
			sort.Slice(entries, func(i, j int) bool {
				if entries[i].rank != entries[j].rank {
					return entries[i].rank < entries[j].rank
				}
				return entries[i].canonicalID < entries[j].canonicalID
			})
		}
	}
	return idx
}

// Lookup resolves a foreign id. When several identities claim it the lowest rank
// wins, then the smallest canonical id.
func (i *Index) Lookup(slot Slot, value string) (string, bool) {
	if i == nil || value == "" {
		return "", false
	}
	entries := i.bySlot[slot][value]
	if len(entries) == 0 {
		return "", false
	}
	return entries[0].canonicalID, true
}

// Identity returns the canonical identity row for id
func (i *Index) Identity(id string) (Identity, bool) {
	ident, ok := i.identities[id]
	return ident, ok
}

// Len is the number of canonical identities
func (i *Index) Len() int {
	return len(i.identities)
}
