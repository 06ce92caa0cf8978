package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
)

func TestFile_LenientMetadata(t *testing.T) {
	f := File{AIMetadata: datatypes.JSON(`{
		"summary": "site photo",
		"keywords": "crane",
		"topics": ["build", 3, "steel"],
		"wordCount": "many",
		"fileSize": 2048,
		"imageDetails": {"mainSubjects": ["crane"], "colors": "yellow", "mood": 1}
	}`)}

	_, err := f.Metadata()
	require.Error(t, err)

	m := f.LenientMetadata()
	require.NotNil(t, m)
	assert.Equal(t, "site photo", m.Summary)
	assert.Equal(t, []string{"crane"}, m.Keywords)
	assert.Equal(t, []string{"build", "steel"}, m.Topics)
	assert.Zero(t, m.WordCount)
	assert.EqualValues(t, 2048, m.FileSize)
	require.NotNil(t, m.ImageDetails)
	assert.Equal(t, []string{"crane"}, m.ImageDetails.MainSubjects)
	assert.Equal(t, []string{"yellow"}, m.ImageDetails.Colors)
	assert.Empty(t, m.ImageDetails.Mood)
	assert.Nil(t, m.TechnicalDetails)
}

func TestFile_LenientMetadataEmpty(t *testing.T) {
	for _, raw := range []string{"", "null", `["a"]`, `{bad`} {
		f := File{AIMetadata: datatypes.JSON(raw)}
		assert.Nil(t, f.LenientMetadata(), raw)
	}
}
