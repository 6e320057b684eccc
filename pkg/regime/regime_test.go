package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyTrending(t *testing.T) {
	c := New(DefaultConfig())
	result := c.Classify(30, 40, 0, 0, false)
	assert.Equal(t, Trending, result.Regime)
	assert.Equal(t, 1.0, result.Multiplier)
}

func TestClassifyChoppyByLowADX(t *testing.T) {
	c := New(DefaultConfig())
	result := c.Classify(15, 40, 0, 0, false)
	assert.Equal(t, Choppy, result.Regime)
	assert.Equal(t, 0.0, result.Multiplier)
}

func TestClassifyChoppyByHighChop(t *testing.T) {
	c := New(DefaultConfig())
	result := c.Classify(30, 65, 0, 0, false)
	assert.Equal(t, Choppy, result.Regime)
}

func TestClassifyTransitional(t *testing.T) {
	c := New(DefaultConfig())
	result := c.Classify(22, 55, 0, 0, false)
	assert.Equal(t, Transitional, result.Regime)
	assert.Equal(t, c.cfg.TransitionalMultiplier, result.Multiplier)
}

func TestClassifyVolatilityRegimes(t *testing.T) {
	c := New(DefaultConfig())
	contraction := c.Classify(30, 40, 0.5, 1.0, true)
	assert.Equal(t, Contraction, contraction.VolatilityRegime)

	expansion := c.Classify(30, 40, 1.5, 1.0, true)
	assert.Equal(t, Expansion, expansion.VolatilityRegime)

	normal := c.Classify(30, 40, 1.0, 1.0, true)
	assert.Equal(t, Normal, normal.VolatilityRegime)
}
