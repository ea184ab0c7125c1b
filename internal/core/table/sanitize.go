package table

// Sanitizer removes noise columns and redistributes stray numeric lines.
type Sanitizer struct {
	c *compiled
}

// NewSanitizer compiles tpl into a Sanitizer.
func NewSanitizer(tpl Template) (*Sanitizer, error) {
	c, err := tpl.compile()
	if err != nil {
		return nil, err
	}
	return &Sanitizer{c: c}, nil
}

// SanitizeResult carries the cleaned rows and any tokens never placed.
type SanitizeResult struct {
	Rows     []string
	Leftover []string
}

// Sanitize runs noise removal, prefix pruning and queue redistribution over rows.
// Each output row is non-empty and never a bare list of numeric tokens.
func (s *Sanitizer) Sanitize(rows []string) SanitizeResult {
	var (
		q        NumericQueue
		consumed bool
		out      = make([]string, 0, len(rows))
	)
	for _, row := range rows {
		cols := s.DropNoise(Cells(row))
		cols = s.PrunePrefix(cols)
		if len(cols) == 0 {
			continue
		}
		if allNumeric(cols) {
			q.PushFront(cols...)
			continue
		}
		if q.Len() > 0 {
			cols = s.redistribute(cols, &q, consumed)
			consumed = true
		}
		out = append(out, JoinCells(cols))
	}
	return SanitizeResult{Rows: out, Leftover: q.Items()}
}

// DropNoise removes every column matching a noise pattern.
func (s *Sanitizer) DropNoise(cols []string) []string {
	kept := make([]string, 0, len(cols))
	for _, col := range cols {
		if !s.isNoise(col) {
			kept = append(kept, col)
		}
	}
	return kept
}

func (s *Sanitizer) isNoise(col string) bool {
	for _, re := range s.c.noise {
		if re.MatchString(col) {
			return true
		}
	}
	return false
}

// PrunePrefix drops column 0 when it looks like a leading identifier and the rest
// of the row already carries a unit token, two money tokens and a quantity.
func (s *Sanitizer) PrunePrefix(cols []string) []string {
	if len(cols) < s.c.tpl.PrefixMinColumns || !isIDLike(cols[0]) {
		return cols
	}
	var unit, money, qty int
	for _, col := range cols[1:] {
		if s.c.unitToken.MatchString(col) {
			unit++
		}
		if v, ok := moneyValue(col); ok && v >= s.c.tpl.MinUnitPrice {
			money++
		}
		if isQuantityLike(col) {
			qty++
		}
	}
	if unit >= 1 && money >= 2 && qty >= 1 {
		return cols[1:]
	}
	return cols
}

// redistribute feeds queued tokens into cols. Short rows are topped up from the
// head of the queue; full rows swap their trailing numeric columns with queued
// tokens, sending the displaced values to the tail. Text columns are never
// swapped, so the queue stays numeric and the row keeps its item name.
func (s *Sanitizer) redistribute(cols []string, q *NumericQueue, consumed bool) []string {
	threshold := s.c.tpl.FirstFillThreshold
	if consumed {
		threshold = s.c.tpl.FillThreshold
	}
	effective := len(cols)
	if !anyQuantity(cols) {
		effective++
	}

	out := make([]string, len(cols), len(cols)+q.Len())
	copy(out, cols)

	if effective < threshold {
		for missing := threshold - effective; missing > 0; missing-- {
			tok, ok := q.PopFront()
			if !ok {
				break
			}
			out = append(out, tok)
		}
		return out
	}

	n := q.Len()
	if len(out) < n {
		n = len(out)
	}
	for i := len(out) - n; i < len(out); i++ {
		if !isNumericToken(out[i]) {
			continue
		}
		tok, _ := q.PopFront()
		displaced := out[i]
		out[i] = tok
		q.PushBack(displaced)
	}
	return out
}

func allNumeric(cols []string) bool {
	for _, c := range cols {
		if !isNumericToken(c) {
			return false
		}
	}
	return len(cols) > 0
}

func anyQuantity(cols []string) bool {
	for _, c := range cols {
		if isQuantityLike(c) {
			return true
		}
	}
	return false
}
