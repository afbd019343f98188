package catalog

import "strings"

// Ranking is the administrator-defined tier priority table: an ordered list,
// highest priority first. Tiers joined with "=" share a rank. Supplied as
// configuration so tier names are never scattered through code as literals.
type Ranking struct {
	priority map[string]int
}

// DefaultRanking mirrors the standard program ordering.
const DefaultRanking = "Foundation,Roofing,Exterior=Structural,MEP,Interior,Low-Risk"

// ParseRanking parses a spec like "A,B=C,D". Position determines priority:
// the first group outranks every later one.
func ParseRanking(spec string) Ranking {
	groups := strings.Split(spec, ",")
	r := Ranking{priority: make(map[string]int)}
	for i, group := range groups {
		// earlier groups get higher numbers
		rank := len(groups) - i
		for _, name := range strings.Split(group, "=") {
			name = normalize(name)
			if name != "" {
				r.priority[name] = rank
			}
		}
	}
	return r
}

// Priority returns a tier's rank; 0 for tiers absent from the table, so any
// ranked tier outranks an unranked one.
func (r Ranking) Priority(tierName string) int {
	return r.priority[normalize(tierName)]
}
