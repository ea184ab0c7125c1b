package table

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTemplateCompiles(t *testing.T) {
	assert.NoError(t, DefaultTemplate().Validate())
}

func TestTemplateValidateRejectsBadPatterns(t *testing.T) {
	tpl := DefaultTemplate()
	tpl.FooterBanner = "("
	assert.Error(t, tpl.Validate())

	tpl = DefaultTemplate()
	tpl.NoisePatterns = append(tpl.NoisePatterns, "[")
	assert.Error(t, tpl.Validate())

	tpl = DefaultTemplate()
	tpl.UnitPriceLabel = " "
	_, err := NewLocator(tpl)
	assert.Error(t, err)

	tpl = DefaultTemplate()
	tpl.VATRate = "x"
	_, err = NewExtractor(tpl, nil)
	assert.Error(t, err)
}

func TestLoadTemplateFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "template.yaml")
	yml := "name: custom\nassignee_keyword: 수령인\nfirst_fill_threshold: 4\n"
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	tpl, err := LoadTemplateFile(path)
	require.NoError(t, err)
	assert.Equal(t, "custom", tpl.Name)
	assert.Equal(t, "수령인", tpl.AssigneeKeyword)
	assert.Equal(t, 4, tpl.FirstFillThreshold)
	assert.Equal(t, 6, tpl.FillThreshold)
	assert.Equal(t, "단가", tpl.UnitPriceLabel)
	assert.Equal(t, DefaultTemplate().UnitTokens, tpl.UnitTokens)

	_, err = LoadTemplateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
