package requirements

import (
	"coitrack/internal/catalog"
	"coitrack/internal/domain"
)

// Service resolves the coverage obligations a subcontractor must satisfy
// for a (jurisdiction, program, trade list) input. Pure function over the
// catalog: no side effects, safe for concurrent use.
type Service struct {
	catalog *catalog.Catalog
}

func New(c *catalog.Catalog) *Service {
	return &Service{catalog: c}
}

// Resolve merges program-tier and jurisdiction requirements into one
// obligation set.
//
// Tier selection is highest-tier-wins: with several trades, the single tier
// with the highest configured priority supplies the program obligations and
// lower-tier trades are subsumed. Equal priority prefers the earlier trade
// in input order, so output is stable run to run. Jurisdiction floors
// matching any input trade (or the wildcard) are always appended as
// first-class required obligations, never merged against tier entries: two
// entries for the same insurance type mean two independent checks.
func (s *Service) Resolve(stateCode, programID string, trades []string) (domain.ResolvedObligationSet, error) {
	set := domain.ResolvedObligationSet{
		ProgramID: programID,
		StateCode: stateCode,
		Trades:    trades,
	}
	if len(trades) == 0 {
		return set, domain.ErrNoTrades
	}

	var (
		winner      domain.RequirementTier
		winnerPrio  = -1
		tradeModels = make([]domain.Trade, 0, len(trades))
	)
	for _, name := range trades {
		trade, ok := s.catalog.Trade(name)
		if !ok {
			return set, &domain.UnknownTradeError{Trade: name}
		}
		tradeModels = append(tradeModels, trade)

		tier, ok := s.catalog.TierFor(programID, trade.Name)
		if !ok {
			return set, &domain.UnknownTradeError{Trade: name, Program: programID}
		}
		// strict > keeps the first trade on ties
		if prio := s.catalog.TierPriority(tier.Name); prio > winnerPrio {
			winner = tier
			winnerPrio = prio
		}
	}
	set.WinningTier = winner.Name

	for _, entry := range winner.Entries {
		set.Obligations = append(set.Obligations, domain.Obligation{
			Type:       entry.Type,
			MinLimit:   entry.MinLimit,
			Required:   entry.Required,
			Provenance: domain.FromProgramTier,
			Source:     winner.Name,
		})
	}

	for _, jr := range s.catalog.JurisdictionFor(stateCode, trades) {
		set.Obligations = append(set.Obligations, domain.Obligation{
			Type:       jr.Entry.Type,
			MinLimit:   jr.Entry.MinLimit,
			Required:   true,
			Provenance: domain.FromJurisdiction,
			Source:     jr.StateCode,
		})
	}

	set.Obligations = append(set.Obligations, s.tradeFlagObligations(tradeModels, set.Obligations)...)
	return set, nil
}

// tradeFlagObligations adds professional/pollution liability for trades that
// mandate them, once per type, unless the set already obligates that type.
func (s *Service) tradeFlagObligations(trades []domain.Trade, existing []domain.Obligation) []domain.Obligation {
	has := func(t domain.InsuranceType) bool {
		for _, o := range existing {
			if o.Type == t {
				return true
			}
		}
		return false
	}
	var out []domain.Obligation
	addedProf, addedPoll := false, false
	for _, trade := range trades {
		if trade.RequiresProfessional && !addedProf && !has(domain.ProfessionalLiability) {
			out = append(out, domain.Obligation{
				Type:       domain.ProfessionalLiability,
				Required:   true,
				Provenance: domain.FromTradeFlag,
				Source:     trade.Name,
			})
			addedProf = true
		}
		if trade.RequiresPollution && !addedPoll && !has(domain.PollutionLiability) {
			out = append(out, domain.Obligation{
				Type:       domain.PollutionLiability,
				Required:   true,
				Provenance: domain.FromTradeFlag,
				Source:     trade.Name,
			})
			addedPoll = true
		}
	}
	return out
}
