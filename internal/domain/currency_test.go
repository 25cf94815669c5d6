package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrency_Valid(t *testing.T) {
	for _, c := range []Currency{CurrencyNGN, CurrencyHIVE, CurrencyHBD} {
		assert.True(t, c.Valid(), c)
	}
	assert.False(t, Currency("USD").Valid())
	assert.False(t, Currency("ngn").Valid())
	assert.False(t, Currency("").Valid())
}

func TestParseCurrency(t *testing.T) {
	c, err := ParseCurrency(" hive ")
	require.NoError(t, err)
	assert.Equal(t, CurrencyHIVE, c)

	_, err = ParseCurrency("usd")
	assert.ErrorIs(t, err, ErrInvalidCurrency)
	assert.ErrorIs(t, err, ErrValidation)
}
