package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestValidityYears(t *testing.T) {
	tests := []struct {
		name           string
		age            int
		holdsBaseClass bool
		want           int
	}{
		{"under 21 first license", 17, false, 1},
		{"under 21 repeat holder", 19, true, 3},
		{"just turned 21", 21, false, 5},
		{"upper edge of 5-year band", 46, false, 5},
		{"just past 5-year band", 47, false, 4},
		{"upper edge of 4-year band", 60, false, 4},
		{"just past 4-year band", 61, false, 3},
		{"upper edge of 3-year band", 70, false, 3},
		{"past 70", 71, false, 1},
		{"very old applicant", 85, false, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, validityYears(tt.age, tt.holdsBaseClass))
		})
	}
}

func TestExpiryDate(t *testing.T) {
	t.Run("anchors expiry to the birthday", func(t *testing.T) {
		// Born January 1st, issued June 1st: the expiry lands on the
		// birthday, not on the issue anniversary.
		issued := date(2025, time.June, 1)
		birth := date(2000, time.January, 1)

		got := expiryDate(issued, birth, 5)
		assert.Equal(t, date(2030, time.January, 1), got)
	})

	t.Run("birthday later in the year", func(t *testing.T) {
		issued := date(2025, time.March, 15)
		birth := date(1990, time.November, 30)

		got := expiryDate(issued, birth, 4)
		assert.Equal(t, date(2029, time.November, 30), got)
	})

	t.Run("one year validity is always in the future", func(t *testing.T) {
		// Even when the anchored date is before the issue date, adding at
		// least one year pushes the expiry past it.
		issued := date(2025, time.December, 20)
		birth := date(2000, time.February, 10)

		got := expiryDate(issued, birth, 1)
		assert.Equal(t, date(2026, time.February, 10), got)
		assert.True(t, got.After(issued))
	})
}
