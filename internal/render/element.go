package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// renderElement converts one element's content to an escaped HTML fragment.
// Charts render as a data container the frontend turns into an actual chart;
// everything else renders directly.
func renderElement(el *model.Element) (template.HTML, error) {
	content, err := el.DecodeContent()
	if err != nil {
		return "", err
	}

	esc := template.HTMLEscapeString
	var sb strings.Builder

	switch c := content.(type) {
	case model.TextContent:
		fmt.Fprintf(&sb, `<p class="element-text">%s</p>`, esc(c.Text))

	case model.BulletsContent:
		sb.WriteString(`<ul class="element-bullets">`)
		for _, item := range c.Items {
			fmt.Fprintf(&sb, "<li>%s</li>", esc(item))
		}
		sb.WriteString("</ul>")

	case model.ImageContent:
		alt := ""
		if c.AltText != nil {
			alt = *c.AltText
		}
		if c.URL != nil && *c.URL != "" {
			fmt.Fprintf(&sb, `<figure class="element-image"><img src="%s" alt="%s">`, esc(*c.URL), esc(alt))
		} else {
			// No asset resolved yet; keep the placeholder visible.
			fmt.Fprintf(&sb, `<figure class="element-image"><div class="image-placeholder">%s</div>`, esc(alt))
		}
		if c.Caption != nil && *c.Caption != "" {
			fmt.Fprintf(&sb, "<figcaption>%s</figcaption>", esc(*c.Caption))
		}
		sb.WriteString("</figure>")

	case model.ChartContent:
		fmt.Fprintf(&sb, `<div class="element-chart" data-chart-type="%s">`, esc(c.ChartType))
		if c.Title != nil && *c.Title != "" {
			fmt.Fprintf(&sb, `<h4 class="chart-title">%s</h4>`, esc(*c.Title))
		}
		sb.WriteString(`<table class="chart-data">`)
		for _, series := range c.Series {
			fmt.Fprintf(&sb, `<tr data-series="%s">`, esc(series.Name))
			for _, pt := range series.Data {
				fmt.Fprintf(&sb, `<td data-x="%s">%g</td>`, esc(string(pt.X)), pt.Y)
			}
			sb.WriteString("</tr>")
		}
		sb.WriteString("</table></div>")

	case model.TableContent:
		sb.WriteString(`<table class="element-table">`)
		if c.Title != nil && *c.Title != "" {
			fmt.Fprintf(&sb, "<caption>%s</caption>", esc(*c.Title))
		}
		sb.WriteString("<thead><tr>")
		for _, col := range c.Columns {
			fmt.Fprintf(&sb, "<th>%s</th>", esc(col))
		}
		sb.WriteString("</tr></thead><tbody>")
		for _, row := range c.Rows {
			sb.WriteString("<tr>")
			for _, cell := range row {
				fmt.Fprintf(&sb, "<td>%s</td>", esc(string(cell)))
			}
			sb.WriteString("</tr>")
		}
		sb.WriteString("</tbody></table>")

	case nil:
		// shape and divider carry no content
		if el.Kind == model.ElementDivider {
			sb.WriteString(`<hr class="element-divider">`)
		}

	default:
		return "", fmt.Errorf("unsupported element kind %q", el.Kind)
	}

	return template.HTML(sb.String()), nil
}
