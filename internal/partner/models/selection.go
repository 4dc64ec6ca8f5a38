package models

import "sort"

// SelectPartners keeps active partners that cover code and offer every
// required capability, ordered by ascending priority. Ties keep id order so
// selection is deterministic.
func SelectPartners(partners []*Partner, code string, required []Capability) []*Partner {
	out := make([]*Partner, 0, len(partners))
	for _, p := range partners {
		if p == nil || !p.Active {
			continue
		}
		if !p.SupportsJurisdiction(code) || !p.HasCapabilities(required) {
			continue
		}
		out = append(out, p)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].ID < out[j].ID
	})
	return out
}
