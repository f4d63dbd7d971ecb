package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// SlideType categorizes a slide's role within the deck.
type SlideType string

const (
	SlideTypeTitle    SlideType = "title"
	SlideTypeSection  SlideType = "section"
	SlideTypeContent  SlideType = "content"
	SlideTypeClosing  SlideType = "closing"
	SlideTypeAppendix SlideType = "appendix"
)

func (t SlideType) valid() bool {
	switch t {
	case SlideTypeTitle, SlideTypeSection, SlideTypeContent, SlideTypeClosing, SlideTypeAppendix:
		return true
	}
	return false
}

// ElementKind determines which content shape is valid for an element.
type ElementKind string

const (
	ElementText    ElementKind = "text"
	ElementBullets ElementKind = "bullets"
	ElementImage   ElementKind = "image"
	ElementChart   ElementKind = "chart"
	ElementTable   ElementKind = "table"
	ElementShape   ElementKind = "shape"
	ElementDivider ElementKind = "divider"
)

func (k ElementKind) valid() bool {
	switch k {
	case ElementText, ElementBullets, ElementImage, ElementChart, ElementTable, ElementShape, ElementDivider:
		return true
	}
	return false
}

// DeckMeta is deck-level metadata.
type DeckMeta struct {
	Title    string  `json:"title"`
	Subtitle *string `json:"subtitle,omitempty"`
	Language string  `json:"language"`
	Audience *string `json:"audience,omitempty"`
	Tone     *string `json:"tone,omitempty"`
}

// DeckStyle holds look-and-feel defaults applied to every slide that does
// not carry its own override.
type DeckStyle struct {
	DefaultBackground string  `json:"default_background,omitempty"`
	ColorScheme       string  `json:"color_scheme,omitempty"`
	AccentColor       *string `json:"accent_color,omitempty"`
}

// SlideStyle is a per-slide style override; zero-valued fields fall back to
// the deck default.
type SlideStyle struct {
	Background  string  `json:"background,omitempty"`
	ColorScheme string  `json:"color_scheme,omitempty"`
	AccentColor *string `json:"accent_color,omitempty"`
	TextColor   string  `json:"text_color,omitempty"` // "light", "dark", or "auto"
}

// LayoutRef names the layout a slide should render with.
type LayoutRef struct {
	LayoutID string  `json:"layout_id"`
	Variant  *string `json:"variant,omitempty"`
}

// Citation is an evidence reference attached to a slide or element.
type Citation struct {
	ID     string  `json:"id"`
	Kind   string  `json:"kind,omitempty"` // "evidence", "url", or "note"
	Title  *string `json:"title,omitempty"`
	Source *string `json:"source,omitempty"`
	Quote  *string `json:"quote,omitempty"`
	URL    *string `json:"url,omitempty"`
}

// StyleOverrides are element-level typography overrides.
type StyleOverrides struct {
	FontFamily *string  `json:"font_family,omitempty"`
	FontPt     *float64 `json:"font_pt,omitempty"`
	Bold       *bool    `json:"bold,omitempty"`
	Italic     *bool    `json:"italic,omitempty"`
	ColorHex   *string  `json:"color_hex,omitempty"`
	Align      *string  `json:"align,omitempty"`
}

// Element is one renderable unit on a slide. Content is a tagged union: the
// Kind field determines which content struct the payload decodes into.
type Element struct {
	ElementID       string          `json:"element_id"`
	Kind            ElementKind     `json:"kind"`
	Role            *string         `json:"role,omitempty"`
	Content         json.RawMessage `json:"content"`
	Citations       []Citation      `json:"citations,omitempty"`
	StyleOverrides  *StyleOverrides `json:"style_overrides,omitempty"`
	TailwindClasses *string         `json:"tailwind_classes,omitempty"`
}

// TextContent is the payload for text elements.
type TextContent struct {
	Text   string `json:"text"`
	Format string `json:"format,omitempty"` // "plain" or "markdown"
}

// BulletsContent is the payload for bullets elements.
type BulletsContent struct {
	Items []string `json:"items"`
}

// ImageContent is the payload for image elements.
type ImageContent struct {
	AssetID *string `json:"asset_id,omitempty"`
	URL     *string `json:"url,omitempty"`
	AltText *string `json:"alt_text,omitempty"`
	Caption *string `json:"caption,omitempty"`
}

// ChartContent is the payload for chart elements.
type ChartContent struct {
	ChartType string        `json:"chart_type"` // bar, line, pie, area, stacked_bar
	Title     *string       `json:"title,omitempty"`
	XLabel    *string       `json:"x_label,omitempty"`
	YLabel    *string       `json:"y_label,omitempty"`
	Series    []ChartSeries `json:"series"`
}

// ChartSeries is one named data series.
type ChartSeries struct {
	Name string       `json:"name"`
	Data []ChartPoint `json:"data"`
}

// ChartPoint is a single data point. X accepts either a string category or a
// numeric value on the wire.
type ChartPoint struct {
	X FlexString `json:"x"`
	Y float64    `json:"y"`
}

// TableContent is the payload for table elements.
type TableContent struct {
	Title   *string        `json:"title,omitempty"`
	Columns []string       `json:"columns"`
	Rows    [][]FlexString `json:"rows"`
}

// FlexString is a string that also accepts JSON numbers, booleans, and null
// when unmarshalling. LLM output is loose about cell and axis types; the
// renderer wants strings.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexString(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = FlexString(strconv.FormatBool(b))
		return nil
	}
	return fmt.Errorf("cannot unmarshal %s into string", string(data))
}

// Slide is a single slide in a deck.
type Slide struct {
	SlideID         string      `json:"slide_id"`
	Type            SlideType   `json:"type"`
	Layout          *LayoutRef  `json:"layout,omitempty"`
	Title           *string     `json:"title,omitempty"`
	Elements        []Element   `json:"elements"`
	Citations       []Citation  `json:"citations,omitempty"`
	SpeakerNotes    *string     `json:"speaker_notes,omitempty"`
	Style           *SlideStyle `json:"style,omitempty"`
	TailwindClasses *string     `json:"tailwind_classes,omitempty"`
}

// Document is the complete generated artifact: deck metadata plus an ordered
// sequence of slides. Built incrementally by the orchestrator, immutable
// once the run completes, individually slide-mutable afterwards via explicit
// edit/regenerate operations.
type Document struct {
	SchemaVersion string     `json:"schema_version"`
	ArtifactID    string     `json:"artifact_id"`
	Deck          DeckMeta   `json:"deck"`
	Style         *DeckStyle `json:"style,omitempty"`
	Slides        []Slide    `json:"slides"`
	CreatedAt     time.Time  `json:"created_at"`
}

// SchemaVersionV1 is the current document schema identifier.
const SchemaVersionV1 = "slidespec_v1"

// DecodeContent unmarshals the element's content payload into the struct
// matching its kind and checks the kind-specific required fields. Shape and
// divider elements carry no required content.
func (e *Element) DecodeContent() (any, error) {
	switch e.Kind {
	case ElementText:
		var c TextContent
		if err := json.Unmarshal(e.Content, &c); err != nil {
			return nil, err
		}
		if c.Text == "" {
			return nil, fmt.Errorf("text content requires a non-empty text field")
		}
		return c, nil
	case ElementBullets:
		var c BulletsContent
		if err := json.Unmarshal(e.Content, &c); err != nil {
			return nil, err
		}
		if len(c.Items) == 0 {
			return nil, fmt.Errorf("bullets content requires at least one item")
		}
		return c, nil
	case ElementImage:
		var c ImageContent
		if err := json.Unmarshal(e.Content, &c); err != nil {
			return nil, err
		}
		return c, nil
	case ElementChart:
		var c ChartContent
		if err := json.Unmarshal(e.Content, &c); err != nil {
			return nil, err
		}
		if c.ChartType == "" || len(c.Series) == 0 {
			return nil, fmt.Errorf("chart content requires chart_type and at least one series")
		}
		return c, nil
	case ElementTable:
		var c TableContent
		if err := json.Unmarshal(e.Content, &c); err != nil {
			return nil, err
		}
		if len(c.Columns) == 0 {
			return nil, fmt.Errorf("table content requires at least one column")
		}
		return c, nil
	case ElementShape, ElementDivider:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown element kind %q", e.Kind)
	}
}

// Validate checks the element's structural invariants.
func (e *Element) Validate() error {
	if e.ElementID == "" {
		return NewValidationError("element", fmt.Errorf("element_id is required"))
	}
	if !e.Kind.valid() {
		return NewValidationError("element "+e.ElementID, fmt.Errorf("unknown kind %q", e.Kind))
	}
	if _, err := e.DecodeContent(); err != nil {
		return NewValidationError("element "+e.ElementID, err)
	}
	return nil
}

// Validate checks the slide's structural invariants: non-empty id, known
// type, unique element ids, and per-kind content shapes.
func (s *Slide) Validate() error {
	if s.SlideID == "" {
		return NewValidationError("slide", fmt.Errorf("slide_id is required"))
	}
	if !s.Type.valid() {
		return NewValidationError("slide "+s.SlideID, fmt.Errorf("unknown type %q", s.Type))
	}
	seen := make(map[string]struct{}, len(s.Elements))
	for i := range s.Elements {
		el := &s.Elements[i]
		if err := el.Validate(); err != nil {
			return err
		}
		if _, dup := seen[el.ElementID]; dup {
			return NewValidationError("slide "+s.SlideID, fmt.Errorf("duplicate element_id %q", el.ElementID))
		}
		seen[el.ElementID] = struct{}{}
	}
	return nil
}

// Validate checks the document's structural invariants, including slide id
// uniqueness across the whole deck.
func (d *Document) Validate() error {
	if d.Deck.Title == "" {
		return NewValidationError("document", fmt.Errorf("deck title is required"))
	}
	if d.Deck.Language == "" {
		return NewValidationError("document", fmt.Errorf("deck language is required"))
	}
	if len(d.Slides) == 0 {
		return NewValidationError("document", fmt.Errorf("at least one slide is required"))
	}
	seen := make(map[string]struct{}, len(d.Slides))
	for i := range d.Slides {
		sl := &d.Slides[i]
		if err := sl.Validate(); err != nil {
			return err
		}
		if _, dup := seen[sl.SlideID]; dup {
			return NewValidationError("document", fmt.Errorf("duplicate slide_id %q", sl.SlideID))
		}
		seen[sl.SlideID] = struct{}{}
	}
	return nil
}

// Outline is the intermediate plan produced before per-slide generation.
type Outline struct {
	Title    string           `json:"title"`
	Subtitle *string          `json:"subtitle,omitempty"`
	Sections []OutlineSection `json:"sections"`
}

// OutlineSection is one planned section with a slide-count hint.
type OutlineSection struct {
	SectionID string   `json:"section_id"`
	Title     string   `json:"title"`
	Slides    int      `json:"slides"`
	KeyPoints []string `json:"key_points"`
}

// Validate checks that the outline can drive brief expansion.
func (o *Outline) Validate() error {
	if o.Title == "" {
		return NewValidationError("outline", fmt.Errorf("title is required"))
	}
	if len(o.Sections) == 0 {
		return NewValidationError("outline", fmt.Errorf("at least one section is required"))
	}
	for i, sec := range o.Sections {
		if sec.Title == "" {
			return NewValidationError("outline", fmt.Errorf("section %d: title is required", i))
		}
		if sec.Slides < 1 {
			return NewValidationError("outline", fmt.Errorf("section %d: slide count must be at least 1", i))
		}
	}
	return nil
}

// SlideBrief is one expanded unit of work derived from the outline: the
// input to per-slide generation.
type SlideBrief struct {
	Type      SlideType `json:"type"`
	Title     string    `json:"title"`
	KeyPoints []string  `json:"key_points"`
}
