package curve

import (
	"fmt"
	"sort"
)

// ReduceRequirements collapses requirement rows to one required node count R
// per country and currency: the largest MaxValidityMonths among applicable
// rows. Pairs without an applicable row are absent from the result.
func ReduceRequirements(requirements []Requirement) (map[PairKey]int, error) {
	reduced := make(map[PairKey]int)
	for _, req := range requirements {
		if !req.Applies {
			continue
		}
		if req.MaxValidityMonths < 0 {
			return nil, fmt.Errorf("requirement %s/%s has negative max validity %d",
				req.Country, req.Currency, req.MaxValidityMonths)
		}
		pair := PairKey{Country: req.Country, Currency: req.Currency}
		if current, exists := reduced[pair]; !exists || req.MaxValidityMonths > current {
			reduced[pair] = req.MaxValidityMonths
		}
	}
	return reduced, nil
}

func sortPairs(pairs []PairKey) {
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Country != pairs[j].Country {
			return pairs[i].Country < pairs[j].Country
		}
		return pairs[i].Currency < pairs[j].Currency
	})
}

func pairNames(pairs []PairKey) []string {
	names := make([]string, 0, len(pairs))
	for _, p := range pairs {
		names = append(names, p.String())
	}
	return names
}
