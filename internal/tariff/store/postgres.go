package store

import (
	"context"
	"database/sql"
	"fmt"

	licmodels "vialidad/internal/license/models"
	"vialidad/internal/tariff"
)

// Postgres reads tariff reference data from the tariffs table.
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) FindAll(ctx context.Context) ([]tariff.Entry, error) {
	query := `
		SELECT class, validity_years, base_fee
		FROM tariffs
		ORDER BY class, validity_years
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query tariffs: %w", err)
	}
	defer rows.Close()

	var entries []tariff.Entry
	for rows.Next() {
		var e tariff.Entry
		var class string
		if err := rows.Scan(&class, &e.ValidityYears, &e.BaseFee); err != nil {
			return nil, fmt.Errorf("scan tariff row: %w", err)
		}
		e.Class = licmodels.Class(class)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tariff rows: %w", err)
	}
	return entries, nil
}
