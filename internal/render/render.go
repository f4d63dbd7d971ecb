// Package render converts generated documents to HTML for live preview and
// export. Layouts are html/template files embedded in the binary; element
// content is escaped before it reaches a template.
package render

import (
	"embed"
	"fmt"
	"html/template"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

//go:embed templates/*.html
var templateFS embed.FS

// layoutTemplates maps layout ids to template names.
var layoutTemplates = map[string]string{
	"title_center":   "title_center.html",
	"section_header": "section_header.html",
	"one_column":     "one_column.html",
	"two_column":     "two_column.html",
	"chart_focus":    "chart_focus.html",
	"table_focus":    "table_focus.html",
	"quote_center":   "quote_center.html",
	"closing":        "closing.html",
}

// typeDefaultLayouts maps slide types to their fallback layout.
var typeDefaultLayouts = map[model.SlideType]string{
	model.SlideTypeTitle:    "title_center",
	model.SlideTypeSection:  "section_header",
	model.SlideTypeContent:  "one_column",
	model.SlideTypeClosing:  "closing",
	model.SlideTypeAppendix: "one_column",
}

// darkBackgrounds lists backgrounds that need light text when the slide
// style says "auto".
var darkBackgrounds = map[string]bool{
	"gradient-primary": true,
	"gradient-dark":    true,
	"gradient-purple":  true,
	"gradient-ocean":   true,
}

// Renderer renders slides and decks to HTML.
type Renderer struct {
	tmpl *template.Template
}

// New parses the embedded layout templates.
func New() (*Renderer, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("render: parse templates: %w", err)
	}
	return &Renderer{tmpl: tmpl}, nil
}

// slideContext is the data passed to layout templates.
type slideContext struct {
	SlideID         string
	SlideIndex      int
	Title           string
	Elements        []elementContext
	SpeakerNotes    string
	StyleClasses    string
	TailwindClasses string
	IsDarkBG        bool
}

// elementContext is one pre-rendered element.
type elementContext struct {
	ElementID       string
	Kind            string
	Role            string
	TailwindClasses string
	HTML            template.HTML
}

// LayoutFor resolves the template for a slide: explicit layout first, then
// the type default, then one_column.
func LayoutFor(slide *model.Slide) string {
	if slide.Layout != nil {
		if name, ok := layoutTemplates[slide.Layout.LayoutID]; ok {
			return name
		}
	}
	if layout, ok := typeDefaultLayouts[slide.Type]; ok {
		return layoutTemplates[layout]
	}
	return layoutTemplates["one_column"]
}

// styleClasses resolves the effective style for a slide, falling back to the
// deck default, and derives light/dark text from the background.
func styleClasses(slide *model.Slide, deckStyle *model.DeckStyle) (classes string, dark bool) {
	background := "bg-white"
	scheme := "default"
	textColor := "auto"

	switch {
	case slide.Style != nil:
		if slide.Style.Background != "" {
			background = slide.Style.Background
		}
		if slide.Style.ColorScheme != "" {
			scheme = slide.Style.ColorScheme
		}
		if slide.Style.TextColor != "" {
			textColor = slide.Style.TextColor
		}
	case deckStyle != nil:
		if deckStyle.DefaultBackground != "" {
			background = deckStyle.DefaultBackground
		}
		if deckStyle.ColorScheme != "" {
			scheme = deckStyle.ColorScheme
		}
	}

	if textColor == "auto" {
		if darkBackgrounds[background] {
			textColor = "light"
		} else {
			textColor = "dark"
		}
	}

	return strings.Join([]string{background, "scheme-" + scheme, "text-theme-" + textColor}, " "), textColor == "light"
}

// RenderSlide renders one slide to an HTML fragment wrapped in a container
// div keyed by slide id, so streaming consumers can swap slides in place.
func (r *Renderer) RenderSlide(slide *model.Slide, index int, deckStyle *model.DeckStyle) (string, error) {
	ctx := slideContext{
		SlideID:    slide.SlideID,
		SlideIndex: index,
	}
	if slide.Title != nil {
		ctx.Title = *slide.Title
	}
	if slide.SpeakerNotes != nil {
		ctx.SpeakerNotes = *slide.SpeakerNotes
	}
	if slide.TailwindClasses != nil {
		ctx.TailwindClasses = *slide.TailwindClasses
	}
	ctx.StyleClasses, ctx.IsDarkBG = styleClasses(slide, deckStyle)

	for i := range slide.Elements {
		el := &slide.Elements[i]
		html, err := renderElement(el)
		if err != nil {
			return "", fmt.Errorf("render: slide %s element %s: %w", slide.SlideID, el.ElementID, err)
		}
		ec := elementContext{
			ElementID: el.ElementID,
			Kind:      string(el.Kind),
			HTML:      html,
		}
		if el.Role != nil {
			ec.Role = *el.Role
		}
		if el.TailwindClasses != nil {
			ec.TailwindClasses = *el.TailwindClasses
		}
		ctx.Elements = append(ctx.Elements, ec)
	}

	var sb strings.Builder
	if err := r.tmpl.ExecuteTemplate(&sb, LayoutFor(slide), ctx); err != nil {
		return "", fmt.Errorf("render: slide %s: %w", slide.SlideID, err)
	}

	return fmt.Sprintf("<div id=\"slide-%s\" class=\"slide-wrapper\" data-index=\"%d\">\n%s\n</div>",
		template.HTMLEscapeString(slide.SlideID), index, sb.String()), nil
}

// deckContext is the data passed to the base template.
type deckContext struct {
	Title    string
	Language string
	Content  template.HTML
}

// RenderDeck renders the full document as one standalone HTML page.
func (r *Renderer) RenderDeck(doc *model.Document) (string, error) {
	var slides []string
	for i := range doc.Slides {
		html, err := r.RenderSlide(&doc.Slides[i], i, doc.Style)
		if err != nil {
			return "", err
		}
		slides = append(slides, html)
	}

	var sb strings.Builder
	err := r.tmpl.ExecuteTemplate(&sb, "base.html", deckContext{
		Title:    doc.Deck.Title,
		Language: doc.Deck.Language,
		Content:  template.HTML(strings.Join(slides, "\n")),
	})
	if err != nil {
		return "", fmt.Errorf("render: deck: %w", err)
	}
	return sb.String(), nil
}
