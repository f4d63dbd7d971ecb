package export

import (
	"archive/zip"
	"bytes"
	"fmt"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// DOCXExporter writes documents as Word packages: deck title page, then one
// heading per slide with its content as paragraphs and tables.
type DOCXExporter struct{}

// NewDOCXExporter creates a DOCX exporter.
func NewDOCXExporter() *DOCXExporter {
	return &DOCXExporter{}
}

// Export writes the document as DOCX bytes.
func (e *DOCXExporter) Export(doc *model.Document) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	parts := map[string]string{
		"[Content_Types].xml":          docxContentTypes,
		"_rels/.rels":                  docxRootRels,
		"docProps/core.xml":            pptxCoreProps(doc),
		"docProps/app.xml":             docxAppProps,
		"word/document.xml":            docxDocument(doc),
		"word/_rels/document.xml.rels": docxDocumentRels,
		"word/styles.xml":              docxStyles,
	}
	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("docx: create part %s: %w", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("docx: write part %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("docx: close package: %w", err)
	}
	return buf.Bytes(), nil
}

const docxContentTypes = xmlHeader + `<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">` +
	`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>` +
	`<Default Extension="xml" ContentType="application/xml"/>` +
	`<Override PartName="/word/document.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.document.main+xml"/>` +
	`<Override PartName="/word/styles.xml" ContentType="application/vnd.openxmlformats-officedocument.wordprocessingml.styles+xml"/>` +
	`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>` +
	`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>` +
	`</Types>`

const docxRootRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="word/document.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

const docxAppProps = xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
	`<Application>Decksmith</Application>` +
	`</Properties>`

const docxDocumentRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/styles" Target="styles.xml"/>` +
	`</Relationships>`

const docxStyles = xmlHeader + `<w:styles xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">` +
	`<w:style w:type="paragraph" w:styleId="Normal" w:default="1"><w:name w:val="Normal"/><w:rPr><w:sz w:val="22"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Title"><w:name w:val="Title"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="56"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Heading1"><w:name w:val="heading 1"/><w:basedOn w:val="Normal"/><w:rPr><w:b/><w:sz w:val="32"/></w:rPr></w:style>` +
	`<w:style w:type="paragraph" w:styleId="Subtitle"><w:name w:val="Subtitle"/><w:basedOn w:val="Normal"/><w:rPr><w:i/><w:sz w:val="28"/></w:rPr></w:style>` +
	`</w:styles>`

func docxParagraph(style, text string) string {
	var sb strings.Builder
	sb.WriteString(`<w:p><w:pPr>`)
	if style != "" {
		fmt.Fprintf(&sb, `<w:pStyle w:val="%s"/>`, style)
	}
	sb.WriteString(`</w:pPr><w:r><w:t xml:space="preserve">` + xmlEscape(text) + `</w:t></w:r></w:p>`)
	return sb.String()
}

func docxTable(c *model.TableContent) string {
	var sb strings.Builder
	sb.WriteString(`<w:tbl><w:tblPr><w:tblStyle w:val="Normal"/><w:tblW w:w="0" w:type="auto"/><w:tblBorders>` +
		`<w:top w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`<w:left w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`<w:bottom w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`<w:right w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`<w:insideH w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`<w:insideV w:val="single" w:sz="4" w:space="0" w:color="CBD5E1"/>` +
		`</w:tblBorders></w:tblPr>`)

	writeRow := func(cells []string, bold bool) {
		sb.WriteString(`<w:tr>`)
		for _, cell := range cells {
			sb.WriteString(`<w:tc><w:tcPr/><w:p><w:r>`)
			if bold {
				sb.WriteString(`<w:rPr><w:b/></w:rPr>`)
			}
			sb.WriteString(`<w:t xml:space="preserve">` + xmlEscape(cell) + `</w:t></w:r></w:p></w:tc>`)
		}
		sb.WriteString(`</w:tr>`)
	}

	writeRow(c.Columns, true)
	for _, row := range c.Rows {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = string(cell)
		}
		writeRow(cells, false)
	}
	sb.WriteString(`</w:tbl>`)
	return sb.String()
}

func docxDocument(doc *model.Document) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>`)

	sb.WriteString(docxParagraph("Title", doc.Deck.Title))
	if doc.Deck.Subtitle != nil && *doc.Deck.Subtitle != "" {
		sb.WriteString(docxParagraph("Subtitle", *doc.Deck.Subtitle))
	}

	for i := range doc.Slides {
		slide := &doc.Slides[i]
		if slide.Title != nil && *slide.Title != "" {
			sb.WriteString(docxParagraph("Heading1", *slide.Title))
		}
		for j := range slide.Elements {
			el := &slide.Elements[j]
			if el.Kind == model.ElementTable {
				content, err := el.DecodeContent()
				if err == nil {
					if tc, ok := content.(model.TableContent); ok {
						if tc.Title != nil && *tc.Title != "" {
							sb.WriteString(docxParagraph("", *tc.Title))
						}
						sb.WriteString(docxTable(&tc))
						continue
					}
				}
			}
			lines, bullets := elementLines(el)
			for _, line := range lines {
				if bullets {
					line = "• " + line
				}
				sb.WriteString(docxParagraph("", line))
			}
		}
		if slide.SpeakerNotes != nil && *slide.SpeakerNotes != "" {
			sb.WriteString(docxParagraph("", "Notes: "+*slide.SpeakerNotes))
		}
	}

	sb.WriteString(`<w:sectPr><w:pgSz w:w="11906" w:h="16838"/></w:sectPr>`)
	sb.WriteString(`</w:body></w:document>`)
	return sb.String()
}
