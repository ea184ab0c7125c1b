package table

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVAT(t *testing.T) {
	cases := map[int64]int64{
		0:      0,
		1:      1,
		9:      1,
		10:     1,
		11:     2,
		6727:   673,
		10000:  1000,
		133364: 13337,
	}
	for supply, want := range cases {
		s := supply
		assert.Equal(t, want, VAT(&s), "supply %d", supply)
	}
	assert.Equal(t, int64(0), VAT(nil))
}

func TestNewVATCalculator(t *testing.T) {
	c, err := NewVATCalculator("0.05")
	require.NoError(t, err)
	s := int64(1001)
	assert.Equal(t, int64(51), c.Of(&s))

	c, err = NewVATCalculator("")
	require.NoError(t, err)
	assert.Equal(t, int64(101), c.Of(&s))

	_, err = NewVATCalculator("ten percent")
	assert.Error(t, err)
	_, err = NewVATCalculator("-0.1")
	assert.Error(t, err)
}
