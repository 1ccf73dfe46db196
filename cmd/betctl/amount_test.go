package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in       string
		decimals int32
		want     string
	}{
		{"100", 18, "100000000000000000000"},
		{"12.5", 18, "12500000000000000000"},
		{"0.000000000000000001", 18, "1"},
		{"42", 0, "42"},
		{"1.25", 2, "125"},
	}
	for _, tc := range cases {
		got, err := parseAmount(tc.in, tc.decimals)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got.String(), tc.in)
	}
}

func TestParseAmountRejects(t *testing.T) {
	for _, in := range []string{"", "abc", "-1", "1.001"} {
		_, err := parseAmount(in, 2)
		assert.Error(t, err, in)
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "12.5", formatAmount("12500000000000000000", 18))
	assert.Equal(t, "0", formatAmount("0", 18))
	assert.Equal(t, "not-a-number", formatAmount("not-a-number", 18))
}
