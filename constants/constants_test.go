package constants

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForExt(t *testing.T) {
	assert.Equal(t, FormatPDF, FormatForExt(".PDF"))
	assert.Equal(t, FormatImage, FormatForExt("tiff"))
	assert.Equal(t, FormatText, FormatForExt(".txt"))
	assert.Equal(t, "", FormatForExt(".heic"))
}

func TestJobStatusTerminal(t *testing.T) {
	assert.False(t, JobStatusRunning.Terminal())
	assert.True(t, JobStatusRefined.Terminal())
	assert.True(t, JobStatusFailed.Terminal())
}
