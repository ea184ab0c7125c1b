package table

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

var (
	reNumericToken = regexp.MustCompile(`^(?:\d{1,3}(?:,\d{3})+|\d+)$`)
	reQuantity     = regexp.MustCompile(`^\d{1,2}$`)
	reMoney        = regexp.MustCompile(`^[₩\\]?\s*(\d{1,3}(?:,\d{3})+|\d{4,})\s*(?:원)?$`)
	rePlainMoney   = regexp.MustCompile(`^\d{4,}$`)
	reSchemaQty    = regexp.MustCompile(`^\d{1,3}$`)

	reDateLike   = regexp.MustCompile(`^\d{2,4}[./-]\d{1,2}(?:[./-]\d{1,2})?$`)
	reAlnumCode  = regexp.MustCompile(`^(?:[A-Za-z]+[-_]?\d[A-Za-z0-9_-]*|\d+[A-Za-z][A-Za-z0-9_-]*)$`)
	reLongDigits = regexp.MustCompile(`^\d{5,}$`)
	reAllDigits  = regexp.MustCompile(`^[\d,.\s]+$`)
)

func isNumericToken(s string) bool { return reNumericToken.MatchString(s) }

func isQuantityLike(s string) bool { return reQuantity.MatchString(s) }

func isIDLike(s string) bool {
	return reDateLike.MatchString(s) || reAlnumCode.MatchString(s) || reLongDigits.MatchString(s)
}

// moneyValue parses a comma-grouped or bare ≥4-digit amount, allowing a ₩ prefix
// or 원 suffix.
func moneyValue(s string) (int64, bool) {
	m := reMoney.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, false
	}
	v, err := strconv.ParseInt(strings.ReplaceAll(m[1], ",", ""), 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// plainMoneyValue is the validator's stricter reading: after removing comma
// separators the whole cell must be a run of at least four digits.
func plainMoneyValue(s string) (int64, bool) {
	plain := strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if !rePlainMoney.MatchString(plain) {
		return 0, false
	}
	v, err := strconv.ParseInt(plain, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.In(r, unicode.Latin, unicode.Hangul) {
			return true
		}
	}
	return false
}

func isAllDigits(s string) bool { return reAllDigits.MatchString(s) }
