// Package mocks generates synthetic tick streams for tests and benchmarks.
package mocks

import (
	"math"
	"math/rand"
	"time"

	"github.com/tradelayout/tickgraph/internal/types"
)

// DataGenerator produces a reproducible random-walk tick series.
type DataGenerator struct {
	rng *rand.Rand
}

// NewDataGenerator creates a generator with the given seed. Use a fixed seed
// for reproducible results in tests.
func NewDataGenerator(seed int64) *DataGenerator {
	return &DataGenerator{
		rng: rand.New(rand.NewSource(seed)),
	}
}

// GeneratorConfig configures how ticks are generated.
type GeneratorConfig struct {
	// Symbol is the instrument symbol (e.g. "NIFTY").
	Symbol string
	// StartTime is the timestamp of the first tick.
	StartTime time.Time
	// Interval is the spacing between consecutive ticks.
	Interval time.Duration
	// Count is the number of ticks to generate.
	Count int
	// InitialPrice is the starting price.
	InitialPrice float64
	// Volatility controls per-tick price movement (0.002 = 0.2% per tick).
	Volatility float64
	// Trend is the drift factor (-0.01 to 0.01 for bearish to bullish).
	Trend float64
	// VolumeBase is the average volume per tick.
	VolumeBase float64
	// VolumeVariance is the variance in volume (0.0 to 1.0).
	VolumeVariance float64
}

// DefaultConfig returns a sensible default configuration: one trading
// session of second-spaced ticks.
func DefaultConfig() GeneratorConfig {
	return GeneratorConfig{
		Symbol:         "NIFTY",
		StartTime:      time.Date(2024, 1, 2, 9, 15, 0, 0, time.UTC),
		Interval:       time.Second,
		Count:          22500,
		InitialPrice:   21500.0,
		Volatility:     0.0005,
		Trend:          0.0,
		VolumeBase:     500,
		VolumeVariance: 0.3,
	}
}

// Generate returns config.Count ticks following a geometric random walk.
func (g *DataGenerator) Generate(config GeneratorConfig) []types.Tick {
	ticks := make([]types.Tick, 0, config.Count)
	price := config.InitialPrice

	for i := 0; i < config.Count; i++ {
		change := g.rng.NormFloat64()*config.Volatility + config.Trend
		price *= math.Exp(change)

		volume := config.VolumeBase * (1 + (g.rng.Float64()*2-1)*config.VolumeVariance)

		ticks = append(ticks, types.Tick{
			Symbol: config.Symbol,
			Time:   config.StartTime.Add(time.Duration(i) * config.Interval),
			Price:  math.Round(price*100) / 100,
			Volume: math.Round(volume),
		})
	}

	return ticks
}
