package store

import (
	licmodels "vialidad/internal/license/models"
	"vialidad/internal/tariff"
)

// Seed returns the default municipal tariff table used when the database has
// no tariff rows yet (fresh installs, in-memory mode, tests).
func Seed() []tariff.Entry {
	classes := []licmodels.Class{
		licmodels.ClassA, licmodels.ClassB, licmodels.ClassC, licmodels.ClassD,
		licmodels.ClassE, licmodels.ClassF, licmodels.ClassG,
	}
	fees := map[int]float64{1: 20, 3: 25, 4: 30, 5: 40}

	var entries []tariff.Entry
	for _, class := range classes {
		base := 0.0
		if class.IsProfessional() {
			base = 7
		}
		for _, years := range []int{1, 3, 4, 5} {
			entries = append(entries, tariff.Entry{
				Class:         class,
				ValidityYears: years,
				BaseFee:       fees[years] + base,
			})
		}
	}
	return entries
}
