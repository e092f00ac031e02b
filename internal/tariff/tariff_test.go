package tariff_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	licmodels "vialidad/internal/license/models"
	"vialidad/internal/tariff"
	tariffstore "vialidad/internal/tariff/store"
	dErrors "vialidad/pkg/domain-errors"
)

func TestTable(t *testing.T) {
	t.Run("indexes entries by class and years", func(t *testing.T) {
		table := tariff.NewTable([]tariff.Entry{
			{Class: licmodels.ClassB, ValidityYears: 5, BaseFee: 40},
			{Class: licmodels.ClassB, ValidityYears: 3, BaseFee: 25},
		})

		fee, err := table.BaseFee(licmodels.ClassB, 5)
		require.NoError(t, err)
		assert.Equal(t, 40.0, fee)
	})

	t.Run("duplicate entries keep the first fee", func(t *testing.T) {
		table := tariff.NewTable([]tariff.Entry{
			{Class: licmodels.ClassB, ValidityYears: 5, BaseFee: 40},
			{Class: licmodels.ClassB, ValidityYears: 5, BaseFee: 99},
		})

		fee, err := table.BaseFee(licmodels.ClassB, 5)
		require.NoError(t, err)
		assert.Equal(t, 40.0, fee)
	})

	t.Run("missing entry yields tariff_not_found", func(t *testing.T) {
		table := tariff.NewTable([]tariff.Entry{
			{Class: licmodels.ClassB, ValidityYears: 5, BaseFee: 40},
		})

		_, err := table.BaseFee(licmodels.ClassB, 2)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTariffNotFound))

		_, err = table.BaseFee(licmodels.ClassC, 5)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTariffNotFound))
	})

	t.Run("empty table reports empty", func(t *testing.T) {
		assert.True(t, tariff.NewTable(nil).Empty())
		assert.False(t, tariff.NewTable(tariffstore.Seed()).Empty())
	})
}

func TestCalculator(t *testing.T) {
	table := tariff.NewTable([]tariff.Entry{
		{Class: licmodels.ClassB, ValidityYears: 5, BaseFee: 40},
	})
	calc := tariff.NewCalculator(table, 8.0)

	t.Run("adds the administrative surcharge", func(t *testing.T) {
		cost, err := calc.Cost(licmodels.ClassB, 5)
		require.NoError(t, err)
		assert.InDelta(t, 48.0, cost, 0.001)
	})

	t.Run("propagates tariff_not_found", func(t *testing.T) {
		_, err := calc.Cost(licmodels.ClassA, 5)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeTariffNotFound))
	})
}

func TestSeed(t *testing.T) {
	table := tariff.NewTable(tariffstore.Seed())

	// Every class covers the four validity bands the age rules can produce.
	for _, class := range []licmodels.Class{
		licmodels.ClassA, licmodels.ClassB, licmodels.ClassC, licmodels.ClassD,
		licmodels.ClassE, licmodels.ClassF, licmodels.ClassG,
	} {
		for _, years := range []int{1, 3, 4, 5} {
			_, err := table.BaseFee(class, years)
			assert.NoError(t, err, "class %s years %d", class, years)
		}
	}

	// Professional classes carry the commercial premium.
	general, err := table.BaseFee(licmodels.ClassB, 5)
	require.NoError(t, err)
	professional, err := table.BaseFee(licmodels.ClassC, 5)
	require.NoError(t, err)
	assert.Greater(t, professional, general)
}

func TestLoad(t *testing.T) {
	table, err := tariff.Load(context.Background(), staticStore{entries: tariffstore.Seed()})
	require.NoError(t, err)
	assert.False(t, table.Empty())
}

type staticStore struct {
	entries []tariff.Entry
}

func (s staticStore) FindAll(context.Context) ([]tariff.Entry, error) {
	return s.entries, nil
}
