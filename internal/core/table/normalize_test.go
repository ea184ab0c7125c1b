package table

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	lines := Normalize(`"품명\t단가\n사과\t1,000"`)
	assert.Equal(t, []string{"품명 | 단가", "사과 | 1,000"}, lines)

	lines = Normalize("  사과    2개  \r\n\r\n배\t\t3,000  ")
	assert.Equal(t, []string{"사과 2개", "배 | | 3,000"}, lines)

	assert.Equal(t, []string{}, Normalize(""))
	assert.Equal(t, []string{}, Normalize(" \n\t\n "))
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []string{
		`"품목\t규격\t수량\t단가\n사과\t1kg\t2\t5,000"`,
		`'"nested"',`,
		"a\\r\\nb\\tc",
		"  spaced    out  \n\n  lines ",
		"\"unbalanced",
		"품명A | 10 | 5,000 | 50,000",
		"각 decomposed",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(strings.Join(once, "\n"))
		assert.Equal(t, once, twice, "input %q", in)
	}
}

func TestCoerceText(t *testing.T) {
	assert.Equal(t, "", CoerceText(nil))
	assert.Equal(t, "abc", CoerceText("abc"))
	assert.Equal(t, "abc", CoerceText([]byte("abc")))
	assert.Equal(t, "a\nb", CoerceText([]string{"a", "b"}))
	assert.Equal(t, "a\n2", CoerceText([]any{"a", 2}))
	assert.Equal(t, "boom", CoerceText(errors.New("boom")))
	assert.Equal(t, "42", CoerceText(42))
}

func TestCells(t *testing.T) {
	assert.Equal(t, []string{"배", "3,000"}, Cells("배 | | 3,000"))
	assert.Equal(t, []string{"Mi|k 1l", "2", "3,000"}, Cells("Mi|k 1l | 2 | 3,000"))
	assert.Equal(t, []string{"a", "b"}, Cells("| a || b |"))
	assert.Equal(t, []string{"사과", "2"}, Cells("사과 |2"))
	assert.Empty(t, Cells(" | "))

	row := []string{"우유 500ml", "3", "2,500"}
	assert.Equal(t, row, Cells(JoinCells(row)))
}
