package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Thursday.
var now = time.Date(2024, 3, 14, 15, 30, 0, 0, time.UTC)

func TestParseTimeframe(t *testing.T) {
	cases := map[TimeframePreset][2]string{
		TimeframeLastHour:  {"2024-03-14T14:30:00Z", "2024-03-14T15:30:00Z"},
		TimeframeToday:     {"2024-03-14T00:00:00Z", "2024-03-14T15:30:00Z"},
		TimeframeYesterday: {"2024-03-13T00:00:00Z", "2024-03-14T00:00:00Z"},
		TimeframeLast3Days: {"2024-03-11T15:30:00Z", "2024-03-14T15:30:00Z"},
		TimeframeLast7Days: {"2024-03-07T15:30:00Z", "2024-03-14T15:30:00Z"},
		TimeframeThisWeek:  {"2024-03-11T00:00:00Z", "2024-03-14T15:30:00Z"},
		TimeframeLastWeek:  {"2024-03-04T00:00:00Z", "2024-03-11T00:00:00Z"},
		TimeframeThisMonth: {"2024-03-01T00:00:00Z", "2024-03-14T15:30:00Z"},
	}
	require.Len(t, cases, len(timeframeOrder))

	for preset, want := range cases {
		after, before, err := parseTimeframeAt(string(preset), now)
		require.NoError(t, err, preset)
		assert.Equal(t, want[0], after, preset)
		assert.Equal(t, want[1], before, preset)
	}
}

func TestParseTimeframeSundayBelongsToPreviousWeek(t *testing.T) {
	sunday := time.Date(2024, 3, 17, 10, 0, 0, 0, time.UTC)
	after, _, err := parseTimeframeAt(string(TimeframeThisWeek), sunday)
	require.NoError(t, err)
	assert.Equal(t, "2024-03-11T00:00:00Z", after)
}

func TestParseTimeframeInvalid(t *testing.T) {
	after, before, err := parseTimeframeAt("", now)
	require.NoError(t, err)
	assert.Empty(t, after)
	assert.Empty(t, before)

	_, _, err = parseTimeframeAt("fortnight", now)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "last_week")
}
