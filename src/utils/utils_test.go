package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2025-01-10")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC), d)

	_, err = ParseDate("10/01/2025")
	assert.Error(t, err)
	_, err = ParseDate("")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	jan10 := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, 0, DaysBetween(jan10, jan10))
	assert.Equal(t, 3, DaysBetween(jan10, jan10.AddDate(0, 0, 3)))
	assert.Equal(t, 3, DaysBetween(jan10.AddDate(0, 0, 3), jan10))

	// Time of day is irrelevant; only the calendar date counts.
	lateNight := time.Date(2025, time.January, 10, 23, 59, 0, 0, time.UTC)
	earlyMorning := time.Date(2025, time.January, 11, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 1, DaysBetween(lateNight, earlyMorning))
}
