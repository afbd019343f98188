package postgres

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"coitrack/internal/domain"
)

// CatalogRepository

func (db *DB) LoadTrades(ctx context.Context) ([]domain.Trade, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT name, requires_professional, requires_pollution FROM trades ORDER BY name
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Trade
	for rows.Next() {
		var t domain.Trade
		if err := rows.Scan(&t.Name, &t.RequiresProfessional, &t.RequiresPollution); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (db *DB) LoadPrograms(ctx context.Context) ([]domain.Program, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT p.id, p.name, t.name, t.trades, t.entries
		FROM insurance_programs p
		JOIN requirement_tiers t ON t.program_id = p.id
		ORDER BY p.id, t.position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var (
		out     []domain.Program
		current *domain.Program
	)
	for rows.Next() {
		var (
			programID, programName string
			tier                   domain.RequirementTier
			trades                 []byte
			entries                []byte
		)
		if err := rows.Scan(&programID, &programName, &tier.Name, &trades, &entries); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(trades, &tier.Trades); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(entries, &tier.Entries); err != nil {
			return nil, err
		}
		if current == nil || current.ID != programID {
			out = append(out, domain.Program{ID: programID, Name: programName})
			current = &out[len(out)-1]
		}
		current.Tiers = append(current.Tiers, tier)
	}
	return out, rows.Err()
}

func (db *DB) LoadJurisdictionRequirements(ctx context.Context) ([]domain.JurisdictionRequirement, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT state_code, trade, coverage_type, min_limit::text, required
		FROM state_requirements
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JurisdictionRequirement
	for rows.Next() {
		var (
			jr       domain.JurisdictionRequirement
			minLimit string
		)
		if err := rows.Scan(&jr.StateCode, &jr.Trade, &jr.Entry.Type, &minLimit, &jr.Entry.Required); err != nil {
			return nil, err
		}
		if jr.Entry.MinLimit, err = decimal.NewFromString(minLimit); err != nil {
			return nil, err
		}
		out = append(out, jr)
	}
	return out, rows.Err()
}
