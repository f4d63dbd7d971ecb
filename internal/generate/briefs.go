package generate

import (
	"fmt"

	"github.com/decksmith-ai/decksmith/internal/model"
)

// ExpandBriefs flattens an outline into the ordered list of per-slide work
// items: one title brief, then per section a section-header brief followed
// by its content briefs, then a closing brief.
//
// A section planned for n slides yields the header plus n-1 content briefs.
// Its key points are split into contiguous groups of len(points)/(n-1)
// (minimum one point per brief); points past the last full group are
// dropped, matching the section's slide budget. A single-slide section
// contributes only its header brief.
func ExpandBriefs(outline *model.Outline) []model.SlideBrief {
	briefs := make([]model.SlideBrief, 0, len(outline.Sections)*2+2)

	subtitle := ""
	if outline.Subtitle != nil {
		subtitle = *outline.Subtitle
	}
	briefs = append(briefs, model.SlideBrief{
		Type:      model.SlideTypeTitle,
		Title:     outline.Title,
		KeyPoints: []string{subtitle},
	})

	for _, sec := range outline.Sections {
		headerPoints := sec.KeyPoints
		if len(headerPoints) > 2 {
			headerPoints = headerPoints[:2]
		}
		briefs = append(briefs, model.SlideBrief{
			Type:      model.SlideTypeSection,
			Title:     sec.Title,
			KeyPoints: headerPoints,
		})

		contentSlides := sec.Slides - 1
		if contentSlides < 1 {
			continue
		}
		perSlide := len(sec.KeyPoints) / contentSlides
		if perSlide < 1 {
			perSlide = 1
		}
		for i := 0; i < contentSlides; i++ {
			start := i * perSlide
			end := start + perSlide
			if start > len(sec.KeyPoints) {
				start = len(sec.KeyPoints)
			}
			if end > len(sec.KeyPoints) {
				end = len(sec.KeyPoints)
			}
			points := sec.KeyPoints[start:end]
			if len(points) == 0 {
				points = []string{fmt.Sprintf("Details for %s", sec.Title)}
			}
			title := sec.Title
			if sec.Slides > 2 {
				title = fmt.Sprintf("%s - Details", sec.Title)
			}
			briefs = append(briefs, model.SlideBrief{
				Type:      model.SlideTypeContent,
				Title:     title,
				KeyPoints: points,
			})
		}
	}

	briefs = append(briefs, model.SlideBrief{
		Type:      model.SlideTypeClosing,
		Title:     "Thank You",
		KeyPoints: []string{"Questions?", "Contact information"},
	})

	return briefs
}
