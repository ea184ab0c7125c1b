package llm

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-lines/internal/core/table"
)

func TestSanitizeRefinedItems(t *testing.T) {
	doc := []byte(`{"items":[{"item":" 사과 ","specification":"-","quantity":"2","unitPrice":"5,000원",` +
		`"supplyAmount":10000.0,"vat":null,"extra":1}],"model":"x"}`)
	schema := BuildRefinedItemsJSONSchema()
	require.Error(t, ValidateJSONAgainstSchema(schema, doc))

	cleaned, changed, err := SanitizeRefinedItems(doc)
	require.NoError(t, err)
	require.NoError(t, ValidateJSONAgainstSchema(schema, cleaned))
	assert.ElementsMatch(t, []string{
		"model",
		"items[0].extra",
		"items[0].item",
		"items[0].specification",
		"items[0].unitPrice",
		"items[0].quantity",
		"items[0].supplyAmount",
		"items[0].vat",
	}, changed)

	var out RefinedItems
	require.NoError(t, json.Unmarshal(cleaned, &out))
	require.Len(t, out.Items, 1)
	it := out.Items[0]
	assert.Equal(t, "사과", it.Item)
	assert.Nil(t, it.Specification)
	assert.Equal(t, int64(2), *it.Quantity)
	assert.Equal(t, int64(5000), it.UnitPrice)
	assert.Equal(t, int64(10000), *it.SupplyAmount)
	assert.Nil(t, it.VAT)
}

func TestSanitizeRefinedItemsRejectsNonObject(t *testing.T) {
	_, _, err := SanitizeRefinedItems([]byte(`[1,2]`))
	assert.Error(t, err)
	_, _, err = SanitizeRefinedItems([]byte(`{`))
	assert.Error(t, err)
}

func TestRefinedItemsBackfillsVAT(t *testing.T) {
	supply := int64(6727)
	printed := int64(700)
	items := RefinedItems{Items: []RefinedItem{
		{Item: "a", UnitPrice: 6727, SupplyAmount: &supply},
		{Item: "b", UnitPrice: 6727, SupplyAmount: &supply, VAT: &printed},
		{Item: "c", UnitPrice: 1000},
	}}
	vat, err := table.NewVATCalculator("")
	require.NoError(t, err)

	got := items.ParsedItems(vat)
	require.Len(t, got, 3)
	assert.Equal(t, int64(673), got[0].VAT)
	assert.Equal(t, int64(700), got[1].VAT)
	assert.Equal(t, int64(0), got[2].VAT)
}

func TestBuildRefineUserPrompt(t *testing.T) {
	req := RefineRequest{
		Result: table.Result{
			ParsedItems: []table.ParsedItem{{Item: "사과", UnitPrice: 5000}},
			CleanedRows: []string{"사과 | 2 | 5,000"},
		},
		OCRText:    strings.Repeat("가", 3100),
		SourceName: "inv.png",
	}
	p, err := BuildRefineUserPrompt(req, false)
	require.NoError(t, err)
	assert.Contains(t, p, "Source: inv.png")
	assert.Contains(t, p, `"parsedItems"`)
	assert.Contains(t, p, `"cleanedRows"`)
	assert.Contains(t, p, "…(truncated)")
	assert.Equal(t, maxOCRPromptChars, strings.Count(p, "가"))

	p, err = BuildRefineUserPrompt(req, true)
	require.NoError(t, err)
	assert.NotContains(t, p, "가가가")
	assert.Contains(t, BuildRefineSystemPrompt(), "JSON Schema")
}

func TestShouldAttachImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scan.png")
	require.NoError(t, os.WriteFile(path, []byte{0x89, 'P', 'N', 'G'}, 0o644))

	ok, url, mt := ShouldAttachImage(RefineRequest{FilePath: path, OCRConfidence: 0.3}, 8)
	assert.True(t, ok)
	assert.Equal(t, "image/png", mt)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))

	ok, _, _ = ShouldAttachImage(RefineRequest{FilePath: path, OCRConfidence: 0.9}, 8)
	assert.False(t, ok)
	ok, _, _ = ShouldAttachImage(RefineRequest{FilePath: path}, 8)
	assert.False(t, ok)
	ok, _, _ = ShouldAttachImage(RefineRequest{FilePath: "invoice.txt", OCRConfidence: 0.3}, 8)
	assert.False(t, ok)
}
