package rag

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/aihub/paperqa-go/internal/errors"
	"github.com/unidoc/unioffice/document"
	"github.com/unidoc/unipdf/v3/extractor"
	"github.com/unidoc/unipdf/v3/model"
)

// Page 按页标注的文本单元，页码1起始
type Page struct {
	Number int
	Text   string
}

// DocumentParser 文档解析器接口
type DocumentParser interface {
	Parse(reader io.Reader, filename string) ([]Page, error)
	Supports(filename string) bool
}

// PDFParser PDF文件解析器，逐页提取文本以保留页码信息
type PDFParser struct{}

func (p *PDFParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".pdf"
}

func (p *PDFParser) Parse(reader io.Reader, filename string) ([]Page, error) {
	pdfBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.ParseError("failed to read pdf", err)
	}

	pdfReader, err := model.NewPdfReader(bytes.NewReader(pdfBytes))
	if err != nil {
		return nil, errors.ParseError("failed to open pdf", err)
	}

	numPages, err := pdfReader.GetNumPages()
	if err != nil {
		return nil, errors.ParseError("failed to get pdf page count", err)
	}
	if numPages == 0 {
		return nil, errors.ParseError("pdf has no pages", nil)
	}

	pages := make([]Page, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page, err := pdfReader.GetPage(i)
		if err != nil {
			continue
		}
		ex, err := extractor.New(page)
		if err != nil {
			continue
		}
		text, err := ex.ExtractText()
		if err != nil {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}

	if len(pages) == 0 {
		return nil, errors.ParseError("no extractable text in pdf", nil)
	}
	return pages, nil
}

// TextParser 纯文本解析器，按换页符\f划分页
type TextParser struct{}

func (p *TextParser) Supports(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".txt" || ext == ".md" || ext == ".markdown"
}

func (p *TextParser) Parse(reader io.Reader, filename string) ([]Page, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.ParseError("failed to read text file", err)
	}

	parts := strings.Split(string(content), "\f")
	pages := make([]Page, 0, len(parts))
	for i, part := range parts {
		pages = append(pages, Page{Number: i + 1, Text: part})
	}
	return pages, nil
}

// DocxParser Word文档解析器，docx无固定分页概念，作为单页处理
type DocxParser struct{}

func (p *DocxParser) Supports(filename string) bool {
	return strings.ToLower(filepath.Ext(filename)) == ".docx"
}

func (p *DocxParser) Parse(reader io.Reader, filename string) ([]Page, error) {
	docBytes, err := io.ReadAll(reader)
	if err != nil {
		return nil, errors.ParseError("failed to read docx", err)
	}

	doc, err := document.Read(bytes.NewReader(docBytes), int64(len(docBytes)))
	if err != nil {
		return nil, errors.ParseError("failed to open docx", err)
	}
	defer doc.Close()

	var builder strings.Builder
	for _, para := range doc.Paragraphs() {
		for _, run := range para.Runs() {
			builder.WriteString(run.Text())
		}
		builder.WriteString("\n")
	}

	return []Page{{Number: 1, Text: builder.String()}}, nil
}

// ParserManager 按文件扩展名分发到具体解析器
type ParserManager struct {
	parsers []DocumentParser
}

// NewParserManager 创建解析器管理器
func NewParserManager() *ParserManager {
	return &ParserManager{
		parsers: []DocumentParser{
			&PDFParser{},
			&DocxParser{},
			&TextParser{},
		},
	}
}

// Parse 解析文件为按页标注的文本序列
func (m *ParserManager) Parse(reader io.Reader, filename string) ([]Page, error) {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return parser.Parse(reader, filename)
		}
	}
	return nil, errors.ParseError(fmt.Sprintf("unsupported file format: %s", filename), nil)
}

// Supports 是否支持该文件格式
func (m *ParserManager) Supports(filename string) bool {
	for _, parser := range m.parsers {
		if parser.Supports(filename) {
			return true
		}
	}
	return false
}
