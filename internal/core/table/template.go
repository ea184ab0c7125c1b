package table

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Template holds the keyword vocabulary, noise patterns and numeric tuning for one
// recurring invoice layout. The numeric fields are heuristics tuned against a single
// Korean 거래명세서 template; they are not guaranteed to hold for other layouts.
type Template struct {
	Name string `yaml:"name"`

	// Header
	UnitPriceLabel string   `yaml:"unit_price_label"`
	HeaderSeeds    []string `yaml:"header_seeds"`

	// Footer
	FooterBanner      string `yaml:"footer_banner"`
	AssigneeKeyword   string `yaml:"assignee_keyword"`
	BannerRowOffset   int    `yaml:"banner_row_offset"`
	AssigneeRowOffset int    `yaml:"assignee_row_offset"`

	// Column filtering
	NoisePatterns []string `yaml:"noise_patterns"`
	UnitTokens    []string `yaml:"unit_tokens"`

	// Spans
	StitchSpan       int `yaml:"stitch_span"`
	HeaderStitchSpan int `yaml:"header_stitch_span"`

	// Sanitizer thresholds
	FirstFillThreshold int `yaml:"first_fill_threshold"`
	FillThreshold      int `yaml:"fill_threshold"`
	PrefixMinColumns   int `yaml:"prefix_min_columns"`

	// Money
	MinUnitPrice int64  `yaml:"min_unit_price"`
	VATRate      string `yaml:"vat_rate"`
}

// DefaultTemplate returns the tuned Korean invoice template.
func DefaultTemplate() Template {
	return Template{
		Name:           "kr-transaction-statement",
		UnitPriceLabel: "단가",
		HeaderSeeds:    []string{"단가", "단가(원)", "단 가", "單價"},

		// 이하여백 with the usual OCR confusions: 이→0l/01/ol/o1, 하→히/허, 여→어/머/04, 백→벡/빽/맥.
		FooterBanner:      `(?:이|0l|01|ol|o1|0I|OI|oI)\s*(?:하|히|허)\s*(?:여|어|머|04|O4)\s*(?:백|벡|빽|맥|뱩)`,
		AssigneeKeyword:   "인수자",
		BannerRowOffset:   1,
		AssigneeRowOffset: 2,

		NoisePatterns: []string{
			`(?i)^(?:https?://|www\.)\S*$`,
			`(?i)\S+\.(?:com|co\.kr|kr|net|org|shop)(?:/\S*)?$`,
			`(?i)(?:™|®|ⓡ|trademark|registered)`,
			`^(?:신선함을\s*드립니다|정직한\s*먹거리|건강한\s*식탁)[.!]*$`,
			`^(?:품\s*목|품\s*명|규\s*격|수\s*량|단\s*가|공\s*급\s*가\s*액|세\s*액|비\s*고|금\s*액|합\s*계)$`,
			`(?i)^(?:no\.?\s*\d+|#\d+|\(\d+\))$`,
		},
		UnitTokens: []string{"kg", "g", "l", "ml", "cm", "mm", "ea"},

		StitchSpan:       4,
		HeaderStitchSpan: 2,

		FirstFillThreshold: 5,
		FillThreshold:      6,
		PrefixMinColumns:   7,

		MinUnitPrice: 1000,
		VATRate:      DefaultVATRate,
	}
}

// LoadTemplateFile reads a YAML file and overlays it on DefaultTemplate.
// Fields absent from the file keep their default values.
func LoadTemplateFile(path string) (Template, error) {
	t := DefaultTemplate()
	b, err := os.ReadFile(path)
	if err != nil {
		return t, fmt.Errorf("read template: %w", err)
	}
	if err := yaml.Unmarshal(b, &t); err != nil {
		return t, fmt.Errorf("decode template %s: %w", path, err)
	}
	return t, nil
}

// compiled is the regex form of a Template, built once per Extractor.
type compiled struct {
	tpl Template

	headerSeeds []*regexp.Regexp
	unitPrice   map[string]struct{}
	banner      *regexp.Regexp
	assignee    *regexp.Regexp
	assigneeKey map[string]struct{}
	noise       []*regexp.Regexp

	spec      *regexp.Regexp
	dashSpec  *regexp.Regexp
	unitToken *regexp.Regexp

	vat VATCalculator
}

// Validate reports the first malformed pattern or missing keyword in t.
func (t Template) Validate() error {
	_, err := t.compile()
	return err
}

func (t Template) compile() (*compiled, error) {
	if strings.TrimSpace(t.UnitPriceLabel) == "" {
		return nil, fmt.Errorf("template %q: unit_price_label is required", t.Name)
	}
	if len(t.UnitTokens) == 0 {
		return nil, fmt.Errorf("template %q: unit_tokens is required", t.Name)
	}
	c := &compiled{tpl: t}

	seeds := t.HeaderSeeds
	if len(seeds) == 0 {
		seeds = []string{t.UnitPriceLabel}
	}
	for _, s := range seeds {
		c.headerSeeds = append(c.headerSeeds, FuzzyPattern(s, true))
	}
	c.unitPrice = keywordSet(t.UnitPriceLabel)

	if t.FooterBanner != "" {
		re, err := regexp.Compile(t.FooterBanner)
		if err != nil {
			return nil, fmt.Errorf("template %q: footer_banner: %w", t.Name, err)
		}
		c.banner = re
	}
	if t.AssigneeKeyword != "" {
		c.assignee = FuzzyPattern(t.AssigneeKeyword, false)
		c.assigneeKey = keywordSet(t.AssigneeKeyword)
	}

	for _, p := range t.NoisePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("template %q: noise pattern %q: %w", t.Name, p, err)
		}
		c.noise = append(c.noise, re)
	}

	vat, err := NewVATCalculator(t.VATRate)
	if err != nil {
		return nil, fmt.Errorf("template %q: %w", t.Name, err)
	}
	c.vat = vat

	units := unitAlternation(t.UnitTokens)
	spec := `\d+(?:\.\d+)?\s*(?:` + units + `)(?:\s*[*×]\s*\d+\s*ea)?`
	c.spec = regexp.MustCompile(`(?i)` + spec)
	c.dashSpec = regexp.MustCompile(`(?i)-\s*(` + spec + `)`)
	c.unitToken = regexp.MustCompile(`(?i)(?:^|[^a-z])(?:\d+(?:\.\d+)?\s*)?(?:` + units + `)(?:$|[^a-z])`)
	return c, nil
}

// unitAlternation orders tokens longest first so "kg" wins over "g" and "ml" over "l".
func unitAlternation(tokens []string) string {
	sorted := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			sorted = append(sorted, regexp.QuoteMeta(strings.ToLower(t)))
		}
	}
	for i := 1; i < len(sorted); i++ {
		for j := i; j > 0 && len(sorted[j]) > len(sorted[j-1]); j-- {
			sorted[j], sorted[j-1] = sorted[j-1], sorted[j]
		}
	}
	return strings.Join(sorted, "|")
}

func keywordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(stripSpace(w))] = struct{}{}
	}
	return m
}
