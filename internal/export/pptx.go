package export

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// Slide geometry in EMU (914400 per inch), 13.333 x 7.5 inches (16:9).
const (
	slideWidthEMU  = 12192000
	slideHeightEMU = 6858000
	emuPerInch     = 914400
)

func inches(v float64) int { return int(v * emuPerInch) }

// PPTXExporter writes documents as PowerPoint packages. When a Capturer is
// set each slide becomes a full-bleed screenshot of its HTML rendering;
// otherwise slides are rebuilt from their elements as native text shapes.
type PPTXExporter struct {
	capturer Capturer
	// renderSlide produces the HTML used for image capture.
	renderSlide func(slide *model.Slide, index int, style *model.DeckStyle) (string, error)
}

// NewPPTXExporter creates a text-shape exporter.
func NewPPTXExporter() *PPTXExporter {
	return &PPTXExporter{}
}

// WithCapture switches the exporter to image-based slides. renderSlide
// supplies per-slide HTML for the capture service.
func (e *PPTXExporter) WithCapture(c Capturer, renderSlide func(*model.Slide, int, *model.DeckStyle) (string, error)) *PPTXExporter {
	e.capturer = c
	e.renderSlide = renderSlide
	return e
}

// Export writes the document as PPTX bytes.
func (e *PPTXExporter) Export(ctx context.Context, doc *model.Document) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	n := len(doc.Slides)

	// Slides are captured sequentially; the capture service runs one
	// browser page at a time.
	images := make([][]byte, n)
	if e.capturer != nil {
		for i := range doc.Slides {
			html, err := e.renderSlide(&doc.Slides[i], i, doc.Style)
			if err != nil {
				return nil, fmt.Errorf("pptx: render slide %d: %w", i+1, err)
			}
			png, err := e.capturer.CaptureSlide(ctx, html, CaptureWidth, CaptureHeight)
			if err != nil {
				return nil, fmt.Errorf("pptx: capture slide %d: %w", i+1, err)
			}
			images[i] = png
		}
	}

	parts := map[string]string{
		"[Content_Types].xml":                          pptxContentTypes(n, e.capturer != nil),
		"_rels/.rels":                                  pptxRootRels,
		"docProps/core.xml":                            pptxCoreProps(doc),
		"docProps/app.xml":                             pptxAppProps,
		"ppt/presentation.xml":                         pptxPresentation(n),
		"ppt/_rels/presentation.xml.rels":              pptxPresentationRels(n),
		"ppt/theme/theme1.xml":                         pptxTheme,
		"ppt/slideMasters/slideMaster1.xml":            pptxSlideMaster,
		"ppt/slideMasters/_rels/slideMaster1.xml.rels": pptxSlideMasterRels,
		"ppt/slideLayouts/slideLayout1.xml":            pptxSlideLayout,
		"ppt/slideLayouts/_rels/slideLayout1.xml.rels": pptxSlideLayoutRels,
	}

	for i := range doc.Slides {
		name := fmt.Sprintf("ppt/slides/slide%d.xml", i+1)
		rels := fmt.Sprintf("ppt/slides/_rels/slide%d.xml.rels", i+1)
		if images[i] != nil {
			parts[name] = pptxImageSlide(i + 1)
			parts[rels] = pptxImageSlideRels(i + 1)
		} else {
			parts[name] = pptxTextSlide(&doc.Slides[i])
			parts[rels] = pptxTextSlideRels
		}
	}

	for name, content := range parts {
		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("pptx: create part %s: %w", name, err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			return nil, fmt.Errorf("pptx: write part %s: %w", name, err)
		}
	}
	for i, png := range images {
		if png == nil {
			continue
		}
		w, err := zw.Create(fmt.Sprintf("ppt/media/image%d.png", i+1))
		if err != nil {
			return nil, fmt.Errorf("pptx: create media: %w", err)
		}
		if _, err := w.Write(png); err != nil {
			return nil, fmt.Errorf("pptx: write media: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("pptx: close package: %w", err)
	}
	return buf.Bytes(), nil
}

func xmlEscape(s string) string {
	var sb strings.Builder
	_ = xml.EscapeText(&sb, []byte(s))
	return sb.String()
}

const xmlHeader = `<?xml version="1.0" encoding="UTF-8" standalone="yes"?>` + "\n"

func pptxContentTypes(slides int, hasImages bool) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Types xmlns="http://schemas.openxmlformats.org/package/2006/content-types">`)
	sb.WriteString(`<Default Extension="rels" ContentType="application/vnd.openxmlformats-package.relationships+xml"/>`)
	sb.WriteString(`<Default Extension="xml" ContentType="application/xml"/>`)
	if hasImages {
		sb.WriteString(`<Default Extension="png" ContentType="image/png"/>`)
	}
	sb.WriteString(`<Override PartName="/ppt/presentation.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.presentation.main+xml"/>`)
	sb.WriteString(`<Override PartName="/ppt/slideMasters/slideMaster1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideMaster+xml"/>`)
	sb.WriteString(`<Override PartName="/ppt/slideLayouts/slideLayout1.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slideLayout+xml"/>`)
	sb.WriteString(`<Override PartName="/ppt/theme/theme1.xml" ContentType="application/vnd.openxmlformats-officedocument.theme+xml"/>`)
	sb.WriteString(`<Override PartName="/docProps/core.xml" ContentType="application/vnd.openxmlformats-package.core-properties+xml"/>`)
	sb.WriteString(`<Override PartName="/docProps/app.xml" ContentType="application/vnd.openxmlformats-officedocument.extended-properties+xml"/>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&sb, `<Override PartName="/ppt/slides/slide%d.xml" ContentType="application/vnd.openxmlformats-officedocument.presentationml.slide+xml"/>`, i)
	}
	sb.WriteString(`</Types>`)
	return sb.String()
}

const pptxRootRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/officeDocument" Target="ppt/presentation.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/package/2006/relationships/metadata/core-properties" Target="docProps/core.xml"/>` +
	`<Relationship Id="rId3" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/extended-properties" Target="docProps/app.xml"/>` +
	`</Relationships>`

func pptxCoreProps(doc *model.Document) string {
	return xmlHeader + `<cp:coreProperties xmlns:cp="http://schemas.openxmlformats.org/package/2006/metadata/core-properties" xmlns:dc="http://purl.org/dc/elements/1.1/" xmlns:dcterms="http://purl.org/dc/terms/" xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance">` +
		`<dc:title>` + xmlEscape(doc.Deck.Title) + `</dc:title>` +
		`<dc:creator>Decksmith</dc:creator>` +
		`<dcterms:created xsi:type="dcterms:W3CDTF">` + doc.CreatedAt.UTC().Format("2006-01-02T15:04:05Z") + `</dcterms:created>` +
		`</cp:coreProperties>`
}

const pptxAppProps = xmlHeader + `<Properties xmlns="http://schemas.openxmlformats.org/officeDocument/2006/extended-properties">` +
	`<Application>Decksmith</Application>` +
	`</Properties>`

func pptxPresentation(slides int) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<p:presentation xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">`)
	sb.WriteString(`<p:sldMasterIdLst><p:sldMasterId id="2147483648" r:id="rId1"/></p:sldMasterIdLst>`)
	sb.WriteString(`<p:sldIdLst>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&sb, `<p:sldId id="%d" r:id="rId%d"/>`, 255+i, 1+i)
	}
	sb.WriteString(`</p:sldIdLst>`)
	fmt.Fprintf(&sb, `<p:sldSz cx="%d" cy="%d"/><p:notesSz cx="%d" cy="%d"/>`, slideWidthEMU, slideHeightEMU, slideHeightEMU, slideWidthEMU)
	sb.WriteString(`</p:presentation>`)
	return sb.String()
}

func pptxPresentationRels(slides int) string {
	var sb strings.Builder
	sb.WriteString(xmlHeader)
	sb.WriteString(`<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">`)
	sb.WriteString(`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="slideMasters/slideMaster1.xml"/>`)
	for i := 1; i <= slides; i++ {
		fmt.Fprintf(&sb, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slide" Target="slides/slide%d.xml"/>`, 1+i, i)
	}
	fmt.Fprintf(&sb, `<Relationship Id="rId%d" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="theme/theme1.xml"/>`, slides+2)
	sb.WriteString(`</Relationships>`)
	return sb.String()
}

const pptxTheme = xmlHeader + `<a:theme xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" name="Decksmith"><a:themeElements>` +
	`<a:clrScheme name="Decksmith"><a:dk1><a:srgbClr val="1A1A2E"/></a:dk1><a:lt1><a:srgbClr val="FFFFFF"/></a:lt1><a:dk2><a:srgbClr val="333333"/></a:dk2><a:lt2><a:srgbClr val="F5F5F5"/></a:lt2><a:accent1><a:srgbClr val="4A90D9"/></a:accent1><a:accent2><a:srgbClr val="8B5CF6"/></a:accent2><a:accent3><a:srgbClr val="10B981"/></a:accent3><a:accent4><a:srgbClr val="F59E0B"/></a:accent4><a:accent5><a:srgbClr val="EF4444"/></a:accent5><a:accent6><a:srgbClr val="06B6D4"/></a:accent6><a:hlink><a:srgbClr val="2563EB"/></a:hlink><a:folHlink><a:srgbClr val="7C3AED"/></a:folHlink></a:clrScheme>` +
	`<a:fontScheme name="Decksmith"><a:majorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:majorFont><a:minorFont><a:latin typeface="Calibri"/><a:ea typeface=""/><a:cs typeface=""/></a:minorFont></a:fontScheme>` +
	`<a:fmtScheme name="Office"><a:fillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:fillStyleLst><a:lnStyleLst><a:ln w="6350"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="12700"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln><a:ln w="19050"><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:ln></a:lnStyleLst><a:effectStyleLst><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle><a:effectStyle><a:effectLst/></a:effectStyle></a:effectStyleLst><a:bgFillStyleLst><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill><a:solidFill><a:schemeClr val="phClr"/></a:solidFill></a:bgFillStyleLst></a:fmtScheme>` +
	`</a:themeElements></a:theme>`

const pptxSlideMaster = xmlHeader + `<p:sldMaster xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
	`<p:cSld><p:bg><p:bgPr><a:solidFill><a:schemeClr val="lt1"/></a:solidFill><a:effectLst/></p:bgPr></p:bg><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr></p:spTree></p:cSld>` +
	`<p:clrMap bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/>` +
	`<p:sldLayoutIdLst><p:sldLayoutId id="2147483649" r:id="rId1"/></p:sldLayoutIdLst>` +
	`</p:sldMaster>`

const pptxSlideMasterRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
	`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/theme" Target="../theme/theme1.xml"/>` +
	`</Relationships>`

const pptxSlideLayout = xmlHeader + `<p:sldLayout xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" type="blank">` +
	`<p:cSld name="Blank"><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr></p:spTree></p:cSld>` +
	`<p:clrMapOvr><a:overrideClrMapping bg1="lt1" tx1="dk1" bg2="lt2" tx2="dk2" accent1="accent1" accent2="accent2" accent3="accent3" accent4="accent4" accent5="accent5" accent6="accent6" hlink="hlink" folHlink="folHlink"/></p:clrMapOvr>` +
	`</p:sldLayout>`

const pptxSlideLayoutRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideMaster" Target="../slideMasters/slideMaster1.xml"/>` +
	`</Relationships>`

const pptxTextSlideRels = xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
	`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
	`</Relationships>`

func pptxImageSlideRels(index int) string {
	return xmlHeader + `<Relationships xmlns="http://schemas.openxmlformats.org/package/2006/relationships">` +
		`<Relationship Id="rId1" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/slideLayout" Target="../slideLayouts/slideLayout1.xml"/>` +
		fmt.Sprintf(`<Relationship Id="rId2" Type="http://schemas.openxmlformats.org/officeDocument/2006/relationships/image" Target="../media/image%d.png"/>`, index) +
		`</Relationships>`
}

// pptxImageSlide places the captured screenshot edge to edge.
func pptxImageSlide(index int) string {
	return xmlHeader + `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>` +
		fmt.Sprintf(`<p:pic><p:nvPicPr><p:cNvPr id="2" name="Slide %d"/><p:cNvPicPr/><p:nvPr/></p:nvPicPr><p:blipFill><a:blip r:embed="rId2"/><a:stretch><a:fillRect/></a:stretch></p:blipFill><p:spPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr></p:pic>`, index, slideWidthEMU, slideHeightEMU) +
		`</p:spTree></p:cSld></p:sld>`
}

// textBox emits one positioned text shape. Each line becomes a paragraph;
// bullet lines get a dash bullet.
type textBox struct {
	id       int
	x, y     int
	w, h     int
	sizePt   int
	bold     bool
	center   bool
	bullets  bool
	colorHex string
	lines    []string
}

func (tb textBox) xml() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, `<p:sp><p:nvSpPr><p:cNvPr id="%d" name="TextBox %d"/><p:cNvSpPr txBox="1"/><p:nvPr/></p:nvSpPr>`, tb.id, tb.id)
	fmt.Fprintf(&sb, `<p:spPr><a:xfrm><a:off x="%d" y="%d"/><a:ext cx="%d" cy="%d"/></a:xfrm><a:prstGeom prst="rect"><a:avLst/></a:prstGeom></p:spPr>`, tb.x, tb.y, tb.w, tb.h)
	sb.WriteString(`<p:txBody><a:bodyPr wrap="square"/><a:lstStyle/>`)
	for _, line := range tb.lines {
		sb.WriteString(`<a:p><a:pPr`)
		if tb.center {
			sb.WriteString(` algn="ctr"`)
		}
		sb.WriteString(`>`)
		if tb.bullets {
			sb.WriteString(`<a:buChar char="-"/>`)
		} else {
			sb.WriteString(`<a:buNone/>`)
		}
		sb.WriteString(`</a:pPr>`)
		fmt.Fprintf(&sb, `<a:r><a:rPr lang="en-US" sz="%d"`, tb.sizePt*100)
		if tb.bold {
			sb.WriteString(` b="1"`)
		}
		sb.WriteString(`>`)
		if tb.colorHex != "" {
			fmt.Fprintf(&sb, `<a:solidFill><a:srgbClr val="%s"/></a:solidFill>`, tb.colorHex)
		}
		sb.WriteString(`</a:rPr><a:t>` + xmlEscape(line) + `</a:t></a:r></a:p>`)
	}
	sb.WriteString(`</p:txBody></p:sp>`)
	return sb.String()
}

// pptxTextSlide rebuilds a slide from its elements as native shapes: a
// title box plus one body box per element, stacked down the slide.
func pptxTextSlide(slide *model.Slide) string {
	var shapes []string
	id := 2
	top := inches(0.5)

	if slide.Title != nil && *slide.Title != "" {
		size, bold, center := 28, true, false
		switch slide.Type {
		case model.SlideTypeTitle, model.SlideTypeClosing:
			size, center = 44, true
			top = inches(2.5)
		case model.SlideTypeSection:
			size = 36
			top = inches(2.8)
		}
		shapes = append(shapes, textBox{
			id: id, x: inches(0.5), y: top, w: slideWidthEMU - inches(1), h: inches(1.2),
			sizePt: size, bold: bold, center: center, colorHex: "1A1A2E",
			lines: []string{*slide.Title},
		}.xml())
		id++
		top += inches(1.5)
	}

	for i := range slide.Elements {
		lines, bullets := elementLines(&slide.Elements[i])
		if len(lines) == 0 {
			continue
		}
		h := inches(0.4 * float64(len(lines)))
		shapes = append(shapes, textBox{
			id: id, x: inches(0.7), y: top, w: slideWidthEMU - inches(1.4), h: h,
			sizePt: 18, bullets: bullets, colorHex: "333333",
			lines: lines,
		}.xml())
		id++
		top += h + inches(0.2)
	}

	return xmlHeader + `<p:sld xmlns:p="http://schemas.openxmlformats.org/presentationml/2006/main" xmlns:a="http://schemas.openxmlformats.org/drawingml/2006/main" xmlns:r="http://schemas.openxmlformats.org/officeDocument/2006/relationships">` +
		`<p:cSld><p:spTree><p:nvGrpSpPr><p:cNvPr id="1" name=""/><p:cNvGrpSpPr/><p:nvPr/></p:nvGrpSpPr><p:grpSpPr><a:xfrm><a:off x="0" y="0"/><a:ext cx="0" cy="0"/><a:chOff x="0" y="0"/><a:chExt cx="0" cy="0"/></a:xfrm></p:grpSpPr>` +
		strings.Join(shapes, "") +
		`</p:spTree></p:cSld></p:sld>`
}

// elementLines flattens an element's content to plain text lines for office
// export. Charts degrade to a per-series value summary, tables to rows of
// pipe-separated cells.
func elementLines(el *model.Element) (lines []string, bullets bool) {
	content, err := el.DecodeContent()
	if err != nil {
		return nil, false
	}

	switch c := content.(type) {
	case model.TextContent:
		return []string{c.Text}, false
	case model.BulletsContent:
		return c.Items, true
	case model.ImageContent:
		if c.AltText != nil && *c.AltText != "" {
			return []string{"[Image: " + *c.AltText + "]"}, false
		}
		return nil, false
	case model.ChartContent:
		if c.Title != nil && *c.Title != "" {
			lines = append(lines, *c.Title)
		}
		for _, series := range c.Series {
			var vals []string
			for _, pt := range series.Data {
				vals = append(vals, fmt.Sprintf("%s: %g", string(pt.X), pt.Y))
			}
			lines = append(lines, series.Name+" | "+strings.Join(vals, ", "))
		}
		return lines, true
	case model.TableContent:
		if c.Title != nil && *c.Title != "" {
			lines = append(lines, *c.Title)
		}
		lines = append(lines, strings.Join(c.Columns, " | "))
		for _, row := range c.Rows {
			cells := make([]string, len(row))
			for i, cell := range row {
				cells[i] = string(cell)
			}
			lines = append(lines, strings.Join(cells, " | "))
		}
		return lines, false
	}
	return nil, false
}
