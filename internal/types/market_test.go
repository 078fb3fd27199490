package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tradelayout/tickgraph/pkg/errors"
)

func TestIntervalDuration(t *testing.T) {
	d, err := Interval5m.Duration()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)

	_, err = Interval("7m").Duration()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInterval))
}

func TestIntervalTruncate(t *testing.T) {
	ts := time.Date(2024, 1, 2, 9, 17, 42, 0, time.UTC)

	start, err := Interval5m.Truncate(ts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC), start)

	start, err = Interval1m.Truncate(ts)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 17, 0, 0, time.UTC), start)
}

func TestNewBarFromTick(t *testing.T) {
	tick := Tick{
		Symbol: "NIFTY",
		Time:   time.Date(2024, 1, 2, 9, 15, 12, 0, time.UTC),
		Price:  100.5,
		Volume: 10,
	}

	start, err := Interval1m.Truncate(tick.Time)
	require.NoError(t, err)

	bar := NewBarFromTick(tick, Interval1m, start)
	assert.Equal(t, 100.5, bar.Open)
	assert.Equal(t, 100.5, bar.High)
	assert.Equal(t, 100.5, bar.Low)
	assert.Equal(t, 100.5, bar.Close)
	assert.Equal(t, 10.0, bar.Volume)
	assert.Equal(t, time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC), bar.Start)
}

func TestBarApply(t *testing.T) {
	bar := Bar{Open: 100, High: 100, Low: 100, Close: 100, Volume: 1}

	bar.Apply(Tick{Price: 105, Volume: 2})
	assert.Equal(t, 105.0, bar.High)
	assert.Equal(t, 105.0, bar.Close)

	bar.Apply(Tick{Price: 95, Volume: 3})
	assert.Equal(t, 95.0, bar.Low)
	assert.Equal(t, 95.0, bar.Close)
	assert.Equal(t, 105.0, bar.High)
	assert.Equal(t, 100.0, bar.Open)
	assert.Equal(t, 6.0, bar.Volume)
}
