package table

import (
	"regexp"
	"strings"
	"unicode"
)

// FuzzyPattern builds a case-insensitive pattern for keyword in which any run of
// whitespace may appear between consecutive characters. When anchored is true the
// pattern must cover the whole (trimmed) cell; otherwise the cell only has to start
// with the keyword.
func FuzzyPattern(keyword string, anchored bool) *regexp.Regexp {
	runes := []rune(stripSpace(keyword))
	parts := make([]string, 0, len(runes))
	for _, r := range runes {
		parts = append(parts, regexp.QuoteMeta(string(r)))
	}
	expr := `(?i)^\s*` + strings.Join(parts, `\s*`)
	if anchored {
		expr += `\s*$`
	}
	return regexp.MustCompile(expr)
}

// Stitch joins up to maxSpan consecutive cells of every row and records each span
// whose whitespace-stripped text equals one of keywords (case-insensitive).
func Stitch(lines []string, keywords []string, maxSpan int) []KeywordHit {
	return stitch(lines, keywordSet(keywords...), maxSpan, 0)
}

func stitch(lines []string, targets map[string]struct{}, maxSpan, from int) []KeywordHit {
	if maxSpan < 1 {
		maxSpan = 1
	}
	var hits []KeywordHit
	for r := from; r < len(lines); r++ {
		cols := Cells(lines[r])
		for start := range cols {
			for span := 1; span <= maxSpan && start+span <= len(cols); span++ {
				joined := strings.Join(cols[start:start+span], " ")
				normalized := stripSpace(joined)
				if _, ok := targets[strings.ToLower(normalized)]; ok {
					hits = append(hits, KeywordHit{
						RowIndex:       r,
						StartCol:       start,
						EndCol:         start + span - 1,
						MatchedText:    joined,
						NormalizedText: normalized,
					})
				}
			}
		}
	}
	return hits
}

// Locator finds the header and footer rows of the line-item table.
type Locator struct {
	c *compiled
}

// NewLocator compiles tpl into a Locator.
func NewLocator(tpl Template) (*Locator, error) {
	c, err := tpl.compile()
	if err != nil {
		return nil, err
	}
	return &Locator{c: c}, nil
}

// HeaderHits returns every header hit: stitched unit-price labels merged with
// direct fuzzy single-cell seed matches.
func (l *Locator) HeaderHits(lines []string) []KeywordHit {
	hits := stitch(lines, l.c.unitPrice, l.c.tpl.HeaderStitchSpan, 0)
	for r, ln := range lines {
		for ci, cell := range Cells(ln) {
			for _, re := range l.c.headerSeeds {
				if re.MatchString(cell) {
					hits = append(hits, KeywordHit{
						RowIndex:       r,
						StartCol:       ci,
						EndCol:         ci,
						MatchedText:    cell,
						NormalizedText: stripSpace(cell),
					})
					break
				}
			}
		}
	}
	return hits
}

// FindHeader returns the hit with the lowest row index, or nil.
func (l *Locator) FindHeader(lines []string) *KeywordHit {
	var best *KeywordHit
	for _, h := range l.HeaderHits(lines) {
		if best == nil || h.RowIndex < best.RowIndex ||
			(h.RowIndex == best.RowIndex && h.StartCol < best.StartCol) {
			hit := h
			best = &hit
		}
	}
	return best
}

// FindFooter scans rows from index from onwards for an end-of-table banner and,
// failing that, for the earliest assignee-label cell.
func (l *Locator) FindFooter(lines []string, from int) *FooterMarker {
	if from < 0 {
		from = 0
	}
	if l.c.banner != nil {
		for r := from; r < len(lines); r++ {
			loc := l.c.banner.FindStringIndex(lines[r])
			if loc == nil {
				continue
			}
			value := lines[r][loc[0]:loc[1]]
			col := 0
			for ci, cell := range Cells(lines[r]) {
				if l.c.banner.MatchString(cell) {
					col = ci
					break
				}
			}
			return &FooterMarker{Kind: FooterMarkerKind, RowIndex: r, ColIndex: col, Value: value}
		}
	}
	if l.c.assignee == nil {
		return nil
	}
	var best *FooterMarker
	for r := from; r < len(lines) && best == nil; r++ {
		for ci, cell := range Cells(lines[r]) {
			if l.c.assignee.MatchString(cell) {
				best = &FooterMarker{Kind: FooterAssigneeKind, RowIndex: r, ColIndex: ci, Value: cell}
				break
			}
		}
	}
	// A label split across cells ("인 | 수 | 자") only shows up when stitched.
	if hits := stitch(lines, l.c.assigneeKey, l.c.tpl.StitchSpan, from); len(hits) > 0 {
		if h := hits[0]; best == nil || h.RowIndex < best.RowIndex {
			best = &FooterMarker{Kind: FooterAssigneeKind, RowIndex: h.RowIndex, ColIndex: h.StartCol, Value: h.MatchedText}
		}
	}
	return best
}

// Slice cuts the data rows out of lines. With no header the slice is empty; with
// no footer it runs to the end of input. Otherwise the footer row and the offset
// rows directly above it (1 for a banner, 2 for an assignee block) are excluded.
func (l *Locator) Slice(lines []string, header *KeywordHit, footer *FooterMarker) TableSlice {
	if header == nil {
		return TableSlice{Start: 0, End: -1, Rows: []string{}}
	}
	start := header.RowIndex + 1
	end := len(lines) - 1
	if footer != nil {
		switch footer.Kind {
		case FooterMarkerKind:
			end = footer.RowIndex - l.c.tpl.BannerRowOffset - 1
		case FooterAssigneeKind:
			end = footer.RowIndex - l.c.tpl.AssigneeRowOffset - 1
		}
	}
	if end > len(lines)-1 {
		end = len(lines) - 1
	}
	if start > len(lines) {
		start = len(lines)
	}
	if end < start {
		return TableSlice{Start: start, End: start - 1, Rows: []string{}}
	}
	rows := make([]string, end-start+1)
	copy(rows, lines[start:end+1])
	return TableSlice{Start: start, End: end, Rows: rows}
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
}
