package table

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResultMatchesContract(t *testing.T) {
	res := newTestExtractor(t).Extract(sampleInvoice)
	b, err := json.Marshal(res)
	require.NoError(t, err)
	assert.NoError(t, ValidateResultJSON(b))

	var top map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(b, &top))
	assert.Len(t, top, 3)
	assert.Contains(t, top, "parsedItems")
	assert.Contains(t, top, "cleanedRows")
	assert.Contains(t, top, "schemaValidation")
}

func TestValidateResultJSONRejects(t *testing.T) {
	assert.Error(t, ValidateResultJSON([]byte(`{"parsedItems":[]}`)))
	assert.Error(t, ValidateResultJSON([]byte(`not json`)))
	assert.Error(t, ValidateResultJSON([]byte(
		`{"parsedItems":[{"item":"a","specification":null,"quantity":1.5,"unitPrice":1000,"supplyAmount":null,"vat":0}],`+
			`"cleanedRows":[],"schemaValidation":{"validCount":0,"invalidCount":0,"validRows":[],"invalidRows":[]}}`)))
}
