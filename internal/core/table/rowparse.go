package table

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
)

// RowParser extracts item fields from one cleaned row. Rows are independent.
type RowParser struct {
	c *compiled
}

// NewRowParser compiles tpl into a RowParser.
func NewRowParser(tpl Template) (*RowParser, error) {
	c, err := tpl.compile()
	if err != nil {
		return nil, err
	}
	return &RowParser{c: c}, nil
}

type moneyCell struct {
	idx   int
	value int64
}

// ParseRow splits row into cells and parses them.
func (p *RowParser) ParseRow(row string) (ParsedItem, error) {
	return p.Parse(Cells(row))
}

// Parse returns the extracted item, or an error wrapping ErrRowRejected when the
// row has no usable item name or unit price. VAT is left for the caller.
func (p *RowParser) Parse(cols []string) (ParsedItem, error) {
	if len(cols) == 0 {
		return ParsedItem{}, fmt.Errorf("%w: empty row", ErrRowRejected)
	}

	itemIdx := 0
	item, spec := p.SplitSpec(cols[0])
	if needsItemRepair(item) {
		for i := 1; i < len(cols); i++ {
			if hasLetter(cols[i]) {
				itemIdx = i
				item, spec = p.SplitSpec(cols[i])
				break
			}
		}
		if needsItemRepair(item) {
			return ParsedItem{}, fmt.Errorf("%w: no item name in %q", ErrRowRejected, JoinCells(cols))
		}
	}

	if spec == "" && itemIdx != 1 && len(cols) > 1 && !isQuantityLike(cols[1]) {
		if m := p.findSpec(cols[1]); m != nil {
			spec = cols[1][m[0]:m[1]]
		} else {
			spec = cols[1]
		}
	}

	var (
		qty    *int64
		qtyIdx = -1
		cands  []int
	)
	for i := 1; i < len(cols); i++ {
		if i != itemIdx && isQuantityLike(cols[i]) {
			cands = append(cands, i)
		}
	}
	if len(cands) == 1 {
		qtyIdx = cands[0]
		qty = atoiPtr(cols[qtyIdx])
	}

	from := 1
	if qtyIdx >= 0 {
		from = qtyIdx + 1
	}
	var money []moneyCell
	for i := from; i < len(cols); i++ {
		if i == itemIdx {
			continue
		}
		if v, ok := moneyValue(cols[i]); ok && v >= p.c.tpl.MinUnitPrice {
			money = append(money, moneyCell{idx: i, value: v})
		}
	}
	if len(money) == 0 {
		return ParsedItem{}, fmt.Errorf("%w: no unit price in %q", ErrRowRejected, JoinCells(cols))
	}

	unit, supply := money[0], (*moneyCell)(nil)
	adjacent := false
	for i := 0; i+1 < len(money); i++ {
		if money[i+1].idx == money[i].idx+1 {
			unit, supply = money[i], &money[i+1]
			adjacent = true
			break
		}
	}
	if !adjacent && len(money) > 1 {
		supply = &money[1]
	}

	if qty == nil && len(cands) > 1 {
		for _, ci := range cands {
			if ci == unit.idx || (supply != nil && ci == supply.idx) {
				continue
			}
			qty = atoiPtr(cols[ci])
			break
		}
	}

	out := ParsedItem{
		Item:      item,
		Quantity:  qty,
		UnitPrice: unit.value,
	}
	if spec != "" && spec != "-" {
		out.Specification = strPtr(spec)
	}
	if supply != nil {
		out.SupplyAmount = int64Ptr(supply.value)
	}
	return out, nil
}

// SplitSpec separates a unit-quantity specification ("500ml", "1kg*10ea") from an
// item name. A dash-introduced match wins; otherwise the first standalone match
// outside parentheses is used. spec is empty when nothing matched.
func (p *RowParser) SplitSpec(text string) (item, spec string) {
	text = strings.TrimSpace(text)
	if m := p.c.dashSpec.FindStringSubmatchIndex(text); m != nil && standaloneEnd(text, m[3]) {
		return cleanItem(text[:m[0]] + " " + text[m[1]:]), text[m[2]:m[3]]
	}
	if m := p.findSpec(text); m != nil {
		return cleanItem(text[:m[0]] + " " + text[m[1]:]), text[m[0]:m[1]]
	}
	return cleanItem(text), ""
}

func (p *RowParser) findSpec(text string) []int {
	parens := parenSpans(text)
	for _, m := range p.c.spec.FindAllStringIndex(text, -1) {
		if inSpans(parens, m[0]) || !standaloneStart(text, m[0]) || !standaloneEnd(text, m[1]) {
			continue
		}
		return m
	}
	return nil
}

func cleanItem(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimRight(s, "-– ")
	return strings.TrimSpace(s)
}

func needsItemRepair(item string) bool {
	return item == "" || isAllDigits(item)
}

func standaloneStart(s string, i int) bool {
	if i == 0 {
		return true
	}
	prev := []rune(s[:i])
	r := prev[len(prev)-1]
	return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.'))
}

func standaloneEnd(s string, i int) bool {
	if i >= len(s) {
		return true
	}
	r := []rune(s[i:])[0]
	return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
}

// parenSpans returns [open, close] byte ranges of parenthesised text.
func parenSpans(s string) [][2]int {
	var (
		spans [][2]int
		stack []int
	)
	for i, r := range s {
		switch r {
		case '(', '（', '[':
			stack = append(stack, i)
		case ')', '）', ']':
			if len(stack) > 0 {
				open := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				spans = append(spans, [2]int{open, i})
			}
		}
	}
	for _, open := range stack {
		spans = append(spans, [2]int{open, len(s)})
	}
	return spans
}

func inSpans(spans [][2]int, i int) bool {
	for _, sp := range spans {
		if i > sp[0] && i < sp[1] {
			return true
		}
	}
	return false
}

func atoiPtr(s string) *int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	return &v
}
