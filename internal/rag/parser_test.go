package rag

import (
	"strings"
	"testing"

	apperrors "github.com/aihub/paperqa-go/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTextParserPages(t *testing.T) {
	parser := &TextParser{}
	pages, err := parser.Parse(strings.NewReader("page one\fpage two\fpage three"), "notes.txt")
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 1, pages[0].Number)
	assert.Equal(t, "page one", pages[0].Text)
	assert.Equal(t, 3, pages[2].Number)
	assert.Equal(t, "page three", pages[2].Text)
}

func TestTextParserSinglePage(t *testing.T) {
	parser := &TextParser{}
	pages, err := parser.Parse(strings.NewReader("no form feeds here"), "notes.md")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 1, pages[0].Number)
}

func TestParserManagerDispatch(t *testing.T) {
	manager := NewParserManager()

	assert.True(t, manager.Supports("paper.pdf"))
	assert.True(t, manager.Supports("paper.PDF"))
	assert.True(t, manager.Supports("readme.md"))
	assert.True(t, manager.Supports("report.docx"))
	assert.False(t, manager.Supports("archive.zip"))

	pages, err := manager.Parse(strings.NewReader("hello"), "a.txt")
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestParserManagerUnsupportedFormat(t *testing.T) {
	manager := NewParserManager()
	_, err := manager.Parse(strings.NewReader("x"), "image.png")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeParse))
}
