package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/noah-isme/agenda-api/pkg/errors"
)

func TestMergeValidInputs(t *testing.T) {
	ts, err := Merge("25/12/2025", "14", "30")
	require.NoError(t, err)
	assert.Equal(t, 2025, ts.Year())
	assert.Equal(t, time.December, ts.Month())
	assert.Equal(t, 25, ts.Day())
	assert.Equal(t, 14, ts.Hour())
	assert.Equal(t, 30, ts.Minute())
	assert.Equal(t, time.Local, ts.Location())
}

func TestMergeMidnightDefaults(t *testing.T) {
	ts, err := Merge("01/06/2024", "00", "00")
	require.NoError(t, err)
	assert.Equal(t, 0, ts.Hour())
	assert.Equal(t, 0, ts.Minute())
}

func TestMergeImpossibleCalendarDates(t *testing.T) {
	cases := []string{"30/02/2024", "31/02/2024", "30/02/2023", "31/04/2025", "00/01/2024", "32/01/2024"}
	for _, data := range cases {
		_, err := Merge(data, "10", "00")
		require.Error(t, err, "expected %s to fail", data)
		assert.Equal(t, appErrors.ErrInvalidDateTime.Code, appErrors.FromError(err).Code)
	}
}

func TestMergeLeapYear(t *testing.T) {
	ts, err := Merge("29/02/2024", "10", "00")
	require.NoError(t, err)
	assert.Equal(t, 29, ts.Day())

	_, err = Merge("29/02/2023", "10", "00")
	require.Error(t, err)
}

func TestMergeRejectsMalformedInput(t *testing.T) {
	cases := []struct {
		data, hour, minute string
	}{
		{"2024-12-25", "10", "00"},
		{"25/12/24", "10", "00"},
		{"25-12-2024", "10", "00"},
		{"25/12/2024", "9", "00"},
		{"25/12/2024", "10", "5"},
		{"25/12/2024", "ab", "00"},
		{"", "10", "00"},
	}
	for _, tc := range cases {
		_, err := Merge(tc.data, tc.hour, tc.minute)
		require.Error(t, err, "merge(%q,%q,%q)", tc.data, tc.hour, tc.minute)
	}
}

func TestMergeAcceptsPastInstants(t *testing.T) {
	ts, err := Merge("01/01/2000", "08", "15")
	require.NoError(t, err)
	assert.True(t, ts.Before(time.Now()))
}

func TestEventTimeRoundTrip(t *testing.T) {
	merged, err := Merge("25/12/2025", "14", "30")
	require.NoError(t, err)

	recomputed, err := EventTime("25/12/2025", "14:30")
	require.NoError(t, err)
	assert.True(t, merged.Equal(recomputed))
}

func TestEventTimeRejectsBadHora(t *testing.T) {
	_, err := EventTime("25/12/2025", "1430")
	require.Error(t, err)
	_, err = EventTime("25/12/2025", "25:00")
	require.Error(t, err)
}

func TestEventDateSortKey(t *testing.T) {
	early, err := EventDate("01/01/2025")
	require.NoError(t, err)
	late, err := EventDate("02/01/2025")
	require.NoError(t, err)
	assert.True(t, early.Before(late))
}
