package scalars

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalDecimal(t *testing.T) {
	var buf bytes.Buffer
	MarshalDecimal(decimal.RequireFromString("12.50000001")).MarshalGQL(&buf)
	assert.Equal(t, `"12.50000001"`, buf.String())
}

func TestUnmarshalDecimal(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{"0.00000001", "0.00000001"},
		{json.Number("42.5"), "42.5"},
		{7, "7"},
		{int64(9), "9"},
		{1.25, "1.25"},
	}
	for _, tc := range cases {
		got, err := UnmarshalDecimal(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got.String())
	}

	_, err := UnmarshalDecimal("ten")
	assert.Error(t, err)
	_, err = UnmarshalDecimal(true)
	assert.Error(t, err)
}
