package catalog

import (
	"github.com/shopspring/decimal"

	"coitrack/internal/domain"
)

// Seed data for development and tests: one program with the standard tier
// ladder plus a few state floors. Production catalogs load from Postgres.

const SeedProgramID = "standard"

func seedEntry(t domain.InsuranceType, dollars int64, required bool) domain.RequirementEntry {
	return domain.RequirementEntry{Type: t, MinLimit: decimal.NewFromInt(dollars), Required: required}
}

// SeedTrades returns the built-in trade taxonomy.
func SeedTrades() []domain.Trade {
	return []domain.Trade{
		{Name: "Concrete"},
		{Name: "Excavation"},
		{Name: "Roofing"},
		{Name: "Masonry"},
		{Name: "Steel Erection"},
		{Name: "Electrical"},
		{Name: "Plumbing"},
		{Name: "HVAC"},
		{Name: "Carpentry"},
		{Name: "Drywall"},
		{Name: "Painting"},
		{Name: "Flooring"},
		{Name: "Landscaping"},
		{Name: "Design-Build", RequiresProfessional: true},
		{Name: "Environmental Remediation", RequiresPollution: true},
	}
}

// SeedProgram returns the standard insurance program.
func SeedProgram() domain.Program {
	return domain.Program{
		ID:   SeedProgramID,
		Name: "Standard Subcontractor Program",
		Tiers: []domain.RequirementTier{
			{
				Name:   "Foundation",
				Trades: []string{"Concrete", "Excavation"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 2_000_000, true),
					seedEntry(domain.AutoLiability, 1_000_000, true),
					seedEntry(domain.Umbrella, 5_000_000, true),
					seedEntry(domain.WorkersComp, 1_000_000, true),
				},
			},
			{
				Name:   "Roofing",
				Trades: []string{"Roofing"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 1_000_000, true),
					seedEntry(domain.AutoLiability, 1_000_000, true),
					seedEntry(domain.Umbrella, 2_000_000, true),
					seedEntry(domain.WorkersComp, 1_000_000, true),
				},
			},
			{
				Name:   "Exterior",
				Trades: []string{"Masonry"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 1_000_000, true),
					seedEntry(domain.AutoLiability, 1_000_000, true),
					seedEntry(domain.Umbrella, 2_000_000, false),
					seedEntry(domain.WorkersComp, 1_000_000, true),
				},
			},
			{
				Name:   "Structural",
				Trades: []string{"Steel Erection", "Design-Build"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 1_000_000, true),
					seedEntry(domain.AutoLiability, 1_000_000, true),
					seedEntry(domain.Umbrella, 2_000_000, false),
					seedEntry(domain.WorkersComp, 1_000_000, true),
				},
			},
			{
				Name:   "MEP",
				Trades: []string{"Electrical", "Plumbing", "HVAC", "Environmental Remediation"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 1_000_000, true),
					seedEntry(domain.AutoLiability, 1_000_000, true),
					seedEntry(domain.WorkersComp, 1_000_000, true),
				},
			},
			{
				Name:   "Interior",
				Trades: []string{"Carpentry", "Drywall", "Flooring"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 1_000_000, true),
					seedEntry(domain.WorkersComp, 500_000, true),
				},
			},
			{
				Name:   "Low-Risk",
				Trades: []string{"Painting", "Landscaping"},
				Entries: []domain.RequirementEntry{
					seedEntry(domain.GeneralLiability, 500_000, true),
					seedEntry(domain.WorkersComp, 500_000, false),
				},
			},
		},
	}
}

// SeedJurisdiction returns built-in state floors.
func SeedJurisdiction() []domain.JurisdictionRequirement {
	return []domain.JurisdictionRequirement{
		{StateCode: "NY", Trade: domain.JurisdictionWildcard, Entry: seedEntry(domain.WorkersComp, 1_000_000, true)},
		{StateCode: "NY", Trade: "Roofing", Entry: seedEntry(domain.GeneralLiability, 2_000_000, true)},
		{StateCode: "NJ", Trade: domain.JurisdictionWildcard, Entry: seedEntry(domain.WorkersComp, 500_000, true)},
		{StateCode: "CA", Trade: domain.JurisdictionWildcard, Entry: seedEntry(domain.AutoLiability, 750_000, true)},
	}
}

// SeedCatalog assembles the full development catalog.
func SeedCatalog() *Catalog {
	return New(SeedTrades(), []domain.Program{SeedProgram()}, SeedJurisdiction(), ParseRanking(DefaultRanking))
}
