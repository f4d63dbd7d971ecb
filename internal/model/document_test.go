package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textEl(id, text string) Element {
	raw, _ := json.Marshal(TextContent{Text: text})
	return Element{ElementID: id, Kind: ElementText, Content: raw}
}

func bulletsEl(id string, items ...string) Element {
	raw, _ := json.Marshal(BulletsContent{Items: items})
	return Element{ElementID: id, Kind: ElementBullets, Content: raw}
}

func validDoc() *Document {
	title := "Intro"
	return &Document{
		SchemaVersion: SchemaVersionV1,
		ArtifactID:    "a1",
		Deck:          DeckMeta{Title: "Q3 Review", Language: "ko"},
		Slides: []Slide{
			{SlideID: "s1", Type: SlideTypeTitle, Title: &title, Elements: []Element{textEl("s1_e1", "Q3 Review")}},
			{SlideID: "s2", Type: SlideTypeContent, Elements: []Element{bulletsEl("s2_e1", "a", "b")}},
		},
	}
}

func TestDocumentValidateOK(t *testing.T) {
	require.NoError(t, validDoc().Validate())
}

func TestDocumentValidateDuplicateSlideID(t *testing.T) {
	d := validDoc()
	d.Slides[1].SlideID = "s1"

	err := d.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, err.Error(), "duplicate slide_id")
}

func TestSlideValidateDuplicateElementID(t *testing.T) {
	s := Slide{
		SlideID:  "s1",
		Type:     SlideTypeContent,
		Elements: []Element{textEl("e1", "x"), textEl("e1", "y")},
	}
	err := s.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate element_id")
}

func TestSlideValidateUnknownType(t *testing.T) {
	s := Slide{SlideID: "s1", Type: SlideType("cover")}
	require.Error(t, s.Validate())
}

func TestElementContentShapeByKind(t *testing.T) {
	tests := []struct {
		name    string
		el      Element
		wantErr bool
	}{
		{"text ok", textEl("e1", "hi"), false},
		{"text empty", Element{ElementID: "e1", Kind: ElementText, Content: json.RawMessage(`{"text":""}`)}, true},
		{"bullets empty", Element{ElementID: "e1", Kind: ElementBullets, Content: json.RawMessage(`{"items":[]}`)}, true},
		{"chart missing series", Element{ElementID: "e1", Kind: ElementChart, Content: json.RawMessage(`{"chart_type":"bar","series":[]}`)}, true},
		{"chart ok", Element{ElementID: "e1", Kind: ElementChart, Content: json.RawMessage(
			`{"chart_type":"bar","series":[{"name":"rev","data":[{"x":"Q1","y":10},{"x":2,"y":20}]}]}`)}, false},
		{"table ok", Element{ElementID: "e1", Kind: ElementTable, Content: json.RawMessage(
			`{"columns":["k","v"],"rows":[["a",1],["b",null]]}`)}, false},
		{"divider no content", Element{ElementID: "e1", Kind: ElementDivider, Content: json.RawMessage(`{}`)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.el.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestFlexStringCoercion(t *testing.T) {
	var c TableContent
	raw := `{"columns":["metric","value"],"rows":[["latency",12.5],["ok",true],["missing",null]]}`
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	assert.Equal(t, FlexString("12.5"), c.Rows[0][1])
	assert.Equal(t, FlexString("true"), c.Rows[1][1])
	assert.Equal(t, FlexString(""), c.Rows[2][1])
}

func TestOutlineValidate(t *testing.T) {
	o := Outline{
		Title: "Plan",
		Sections: []OutlineSection{
			{SectionID: "sec1", Title: "Background", Slides: 2, KeyPoints: []string{"a", "b"}},
		},
	}
	require.NoError(t, o.Validate())

	o.Sections[0].Slides = 0
	require.Error(t, o.Validate())

	o.Sections = nil
	require.Error(t, o.Validate())
}
