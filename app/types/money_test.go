package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMinorUnitFactor(t *testing.T) {
	assert.Equal(t, int64(100), MinorUnitFactor("USD"))
	assert.Equal(t, int64(100), MinorUnitFactor("eur"))
	assert.Equal(t, int64(1), MinorUnitFactor("JPY"))
	assert.Equal(t, int64(1), MinorUnitFactor(" krw "))
}

func TestToMinorUnits(t *testing.T) {
	assert.Equal(t, int64(1999), ToMinorUnits(19.99, "USD"))
	assert.Equal(t, int64(500), ToMinorUnits(500, "JPY"))
	assert.Equal(t, int64(10), ToMinorUnits(0.1, "EUR"))
	assert.Equal(t, int64(-250), ToMinorUnits(-2.50, "USD"))
}
