package ocr

import (
	"sort"
	"strconv"
	"strings"
)

// DefaultColumnGapFactor is the horizontal gap, in median word heights, above
// which two words on one line are treated as separate table cells.
const DefaultColumnGapFactor = 1.5

// Word is one recognized word from tesseract TSV output.
type Word struct {
	Page, Block, Par, Line int
	Left, Top              int
	Width, Height          int
	Conf                   float64
	Text                   string
}

// Layout is text rebuilt from word boxes.
type Layout struct {
	Text       string
	Lines      int
	Words      int
	Confidence float32 // mean word confidence in 0..1; 0 when nothing was scored
}

type lineKey struct{ page, block, par, line int }

// ParseTSV reads tesseract TSV and returns the word-level (level 5) rows that carry text.
func ParseTSV(tsv string) []Word {
	var words []Word
	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue
		}
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		text := strings.TrimSpace(strings.Join(cols[11:], "\t"))
		if text == "" {
			continue
		}
		n := make([]int, 10)
		ok := true
		for j := 1; j <= 9; j++ {
			v, err := strconv.Atoi(cols[j])
			if err != nil {
				ok = false
				break
			}
			n[j] = v
		}
		if !ok {
			continue
		}
		conf, err := strconv.ParseFloat(cols[10], 64)
		if err != nil {
			conf = -1
		}
		words = append(words, Word{
			Page: n[1], Block: n[2], Par: n[3], Line: n[4],
			Left: n[6], Top: n[7], Width: n[8], Height: n[9],
			Conf: conf,
			Text: text,
		})
	}
	return words
}

// LayoutFromTSV groups words into lines by (page, block, paragraph, line), orders
// each line left to right, and separates words with a tab when the gap between
// them exceeds gapFactor times the median word height.
func LayoutFromTSV(tsv string, gapFactor float64) Layout {
	if gapFactor <= 0 {
		gapFactor = DefaultColumnGapFactor
	}
	words := ParseTSV(tsv)
	if len(words) == 0 {
		return Layout{}
	}

	threshold := gapFactor * float64(medianHeight(words))

	var (
		order  []lineKey
		groups = map[lineKey][]Word{}
	)
	for _, w := range words {
		k := lineKey{w.Page, w.Block, w.Par, w.Line}
		if _, seen := groups[k]; !seen {
			order = append(order, k)
		}
		groups[k] = append(groups[k], w)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := groups[order[i]][0], groups[order[j]][0]
		if a.Page != b.Page {
			return a.Page < b.Page
		}
		return a.Top < b.Top
	})

	var b strings.Builder
	for li, k := range order {
		line := groups[k]
		sort.SliceStable(line, func(i, j int) bool { return line[i].Left < line[j].Left })
		if li > 0 {
			b.WriteByte('\n')
		}
		for wi, w := range line {
			if wi > 0 {
				prev := line[wi-1]
				gap := w.Left - (prev.Left + prev.Width)
				if float64(gap) > threshold {
					b.WriteByte('\t')
				} else {
					b.WriteByte(' ')
				}
			}
			b.WriteString(w.Text)
		}
	}

	var sum, n float64
	for _, w := range words {
		if w.Conf >= 0 {
			sum += w.Conf
			n++
		}
	}
	var conf float32
	if n > 0 {
		conf = float32(sum / n / 100)
	}
	return Layout{Text: b.String(), Lines: len(order), Words: len(words), Confidence: conf}
}

func medianHeight(words []Word) int {
	hs := make([]int, 0, len(words))
	for _, w := range words {
		if w.Height > 0 {
			hs = append(hs, w.Height)
		}
	}
	if len(hs) == 0 {
		return 0
	}
	sort.Ints(hs)
	return hs[len(hs)/2]
}
