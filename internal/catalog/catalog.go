package catalog

import (
	"strings"

	"coitrack/internal/domain"
)

// Catalog is the in-memory requirement catalog: trades, program tiers, and
// jurisdiction floors. Built once from repository data (or the seed) and
// read-only afterwards, so it is safe for concurrent use.
type Catalog struct {
	trades       map[string]domain.Trade
	programs     map[string]domain.Program
	tierByTrade  map[string]map[string]domain.RequirementTier // program -> trade -> tier
	jurisdiction []domain.JurisdictionRequirement
	ranking      Ranking
}

func New(trades []domain.Trade, programs []domain.Program, jurisdiction []domain.JurisdictionRequirement, ranking Ranking) *Catalog {
	c := &Catalog{
		trades:       make(map[string]domain.Trade, len(trades)),
		programs:     make(map[string]domain.Program, len(programs)),
		tierByTrade:  make(map[string]map[string]domain.RequirementTier, len(programs)),
		jurisdiction: jurisdiction,
		ranking:      ranking,
	}
	for _, t := range trades {
		c.trades[normalize(t.Name)] = t
	}
	for _, p := range programs {
		c.programs[p.ID] = p
		byTrade := make(map[string]domain.RequirementTier)
		for _, tier := range p.Tiers {
			for _, name := range tier.Trades {
				byTrade[normalize(name)] = tier
			}
		}
		c.tierByTrade[p.ID] = byTrade
	}
	return c
}

// Trade looks up a trade by name, case-insensitively.
func (c *Catalog) Trade(name string) (domain.Trade, bool) {
	t, ok := c.trades[normalize(name)]
	return t, ok
}

// TierFor returns the tier a trade belongs to within a program.
func (c *Catalog) TierFor(programID, trade string) (domain.RequirementTier, bool) {
	tier, ok := c.tierByTrade[programID][normalize(trade)]
	return tier, ok
}

// TierPriority returns the configured priority of a tier; higher wins.
// Unranked tiers sort below every ranked one.
func (c *Catalog) TierPriority(tierName string) int {
	return c.ranking.Priority(tierName)
}

// JurisdictionFor returns every floor for the state matching any of the
// given trades or the wildcard, in catalog order.
func (c *Catalog) JurisdictionFor(stateCode string, trades []string) []domain.JurisdictionRequirement {
	want := make(map[string]bool, len(trades))
	for _, t := range trades {
		want[normalize(t)] = true
	}
	var out []domain.JurisdictionRequirement
	for _, jr := range c.jurisdiction {
		if !strings.EqualFold(jr.StateCode, stateCode) {
			continue
		}
		if jr.Trade == domain.JurisdictionWildcard || want[normalize(jr.Trade)] {
			out = append(out, jr)
		}
	}
	return out
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
