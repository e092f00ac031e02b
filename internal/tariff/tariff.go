// Package tariff holds the read-mostly fee reference data and the cost
// calculator built on top of it. The table is constructed once at startup and
// passed around by composition; nothing in this package reaches for globals.
package tariff

import (
	"context"
	"fmt"
	"sort"

	licmodels "vialidad/internal/license/models"
	dErrors "vialidad/pkg/domain-errors"
)

// Entry maps (class, validity years) to a base fee. Reference data, immutable.
type Entry struct {
	Class         licmodels.Class
	ValidityYears int
	BaseFee       float64
}

// Store is the persistence collaborator the table loads from.
type Store interface {
	FindAll(ctx context.Context) ([]Entry, error)
}

// Table is an immutable in-memory index of tariff entries keyed by
// (class, validity years). Build it once with Load or NewTable.
type Table struct {
	fees map[licmodels.Class]map[int]float64
}

// NewTable builds a table from entries. Duplicate (class, years) pairs keep
// the first entry seen.
func NewTable(entries []Entry) *Table {
	fees := make(map[licmodels.Class]map[int]float64)
	for _, e := range entries {
		byYears, ok := fees[e.Class]
		if !ok {
			byYears = make(map[int]float64)
			fees[e.Class] = byYears
		}
		if _, exists := byYears[e.ValidityYears]; !exists {
			byYears[e.ValidityYears] = e.BaseFee
		}
	}
	return &Table{fees: fees}
}

// Load reads every tariff row from the store and indexes it.
func Load(ctx context.Context, store Store) (*Table, error) {
	entries, err := store.FindAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load tariffs: %w", err)
	}
	return NewTable(entries), nil
}

// Empty reports whether the table holds no entries at all.
func (t *Table) Empty() bool {
	return len(t.fees) == 0
}

// BaseFee returns the base fee for an exact (class, years) match. There is no
// interpolation across validity periods.
func (t *Table) BaseFee(class licmodels.Class, years int) (float64, error) {
	byYears := t.fees[class]
	fee, ok := byYears[years]
	if !ok {
		available := make([]int, 0, len(byYears))
		for y := range byYears {
			available = append(available, y)
		}
		sort.Ints(available)
		return 0, dErrors.New(dErrors.CodeTariffNotFound,
			fmt.Sprintf("no tariff for class %s and validity %d years (available: %v)", class, years, available))
	}
	return fee, nil
}

// Calculator combines the tariff table with the fixed administrative
// surcharge. Pure once constructed; no side effects.
type Calculator struct {
	table     *Table
	surcharge float64
}

// NewCalculator builds a calculator over an already-loaded table.
func NewCalculator(table *Table, surcharge float64) *Calculator {
	return &Calculator{table: table, surcharge: surcharge}
}

// Cost returns base fee plus the administrative surcharge.
func (c *Calculator) Cost(class licmodels.Class, years int) (float64, error) {
	base, err := c.table.BaseFee(class, years)
	if err != nil {
		return 0, err
	}
	return base + c.surcharge, nil
}
