package table

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/jamesokelly/jobsheet-importer/constants"
	"github.com/jamesokelly/jobsheet-importer/internal/common"
)

// ColumnBound is the horizontal band one column occupies on the page.
type ColumnBound struct {
	Name constants.Column `json:"name"`
	MinX float64          `json:"min_x"`
	MaxX float64          `json:"max_x"`
}

// Template describes the column layout of one known job sheet export
// format. Templates can be loaded from JSON so new export formats do not
// require a rebuild; the header row, when present, overrides the bands.
type Template struct {
	Name    string        `json:"name"`
	Columns []ColumnBound `json:"columns"`
}

// templateSchema constrains user-supplied template documents before they
// are trusted to drive column assignment.
const templateSchema = `{
  "type": "object",
  "additionalProperties": false,
  "required": ["name", "columns"],
  "properties": {
    "name": {"type": "string", "minLength": 1},
    "columns": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "min_x", "max_x"],
        "properties": {
          "name": {"type": "string", "minLength": 1},
          "min_x": {"type": "number", "minimum": 0},
          "max_x": {"type": "number", "minimum": 0}
        }
      }
    }
  }
}`

var compiledTemplateSchema = jsonschema.MustCompileString("column_template.json", templateSchema)

// DefaultTemplate matches the stock A4-landscape job sheet export.
func DefaultTemplate() Template {
	return Template{
		Name: "default",
		Columns: []ColumnBound{
			{Name: constants.ColWIP, MinX: 30, MaxX: 110},
			{Name: constants.ColReg, MinX: 110, MaxX: 195},
			{Name: constants.ColVHC, MinX: 195, MaxX: 255},
			{Name: constants.ColDescription, MinX: 255, MaxX: 555},
			{Name: constants.ColAWs, MinX: 555, MaxX: 615},
			{Name: constants.ColTime, MinX: 615, MaxX: 690},
			{Name: constants.ColDateTime, MinX: 690, MaxX: 845},
		},
	}
}

// LoadTemplate reads and validates a template JSON document.
func LoadTemplate(path string) (Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Template{}, common.WrapError(err, "read column template")
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return Template{}, common.NewAppError("TEMPLATE_INVALID", "column template is not valid JSON", err)
	}
	if err := compiledTemplateSchema.Validate(doc); err != nil {
		return Template{}, common.NewAppError("TEMPLATE_INVALID", "column template failed schema validation", err)
	}

	var t Template
	if err := json.Unmarshal(data, &t); err != nil {
		return Template{}, common.NewAppError("TEMPLATE_INVALID", "decode column template", err)
	}
	for _, c := range t.Columns {
		if c.MaxX <= c.MinX {
			return Template{}, common.NewAppError("TEMPLATE_INVALID",
				fmt.Sprintf("column %q has max_x <= min_x", c.Name), common.ErrInvalidInput)
		}
	}
	return t, nil
}

// ColumnFor assigns an x-center to a column band. Fragments that land in
// the gutter between bands snap to the nearest band so slightly shifted
// exports still reconstruct.
func (t Template) ColumnFor(centerX float64) (constants.Column, bool) {
	if len(t.Columns) == 0 {
		return "", false
	}
	for _, c := range t.Columns {
		if centerX >= c.MinX && centerX < c.MaxX {
			return c.Name, true
		}
	}
	best := t.Columns[0]
	bestDist := bandDistance(best, centerX)
	for _, c := range t.Columns[1:] {
		if d := bandDistance(c, centerX); d < bestDist {
			best, bestDist = c, d
		}
	}
	return best.Name, true
}

func bandDistance(c ColumnBound, x float64) float64 {
	switch {
	case x < c.MinX:
		return c.MinX - x
	case x >= c.MaxX:
		return x - c.MaxX
	default:
		return 0
	}
}

// fromHeader builds a template out of a detected header row. Each header
// label anchors its column's left edge; the column extends to the next
// label's left edge.
func fromHeader(labels []headerLabel, pageRight float64) Template {
	t := Template{Name: "header"}
	for i, l := range labels {
		maxX := pageRight
		if i+1 < len(labels) {
			maxX = labels[i+1].x - headerSlack
		}
		t.Columns = append(t.Columns, ColumnBound{
			Name: l.column,
			MinX: l.x - headerSlack,
			MaxX: maxX,
		})
	}
	return t
}

// headerLabel is a recognized column heading and its anchor position.
type headerLabel struct {
	column constants.Column
	x      float64
}

// headerSlack widens header-derived bands a little to the left so cell
// text indented under a heading still lands in the band.
const headerSlack = 8.0

// matchHeaderColumn maps a header fragment's text to a known column.
func matchHeaderColumn(text string) (constants.Column, bool) {
	s := strings.ToUpper(strings.TrimSpace(text))
	switch {
	case s == "WIP" || strings.HasPrefix(s, "WIP"):
		return constants.ColWIP, true
	case strings.HasPrefix(s, "REG"):
		return constants.ColReg, true
	case strings.HasPrefix(s, "VHC"):
		return constants.ColVHC, true
	case strings.HasPrefix(s, "DESC"):
		return constants.ColDescription, true
	case s == "AWS" || s == "AW" || strings.HasPrefix(s, "AWS"):
		return constants.ColAWs, true
	case strings.HasPrefix(s, "DATE"):
		return constants.ColDateTime, true
	case strings.HasPrefix(s, "TIME"):
		return constants.ColTime, true
	default:
		return "", false
	}
}
