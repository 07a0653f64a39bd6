// Package extract pulls positioned text fragments from a PDF's vector
// text layer. It uses ledongthuc/pdf (pure Go, no CGO); pixel OCR of
// scanned images is out of scope, so a PDF with no text layer yields zero
// fragments rather than an error.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"

	"github.com/jamesokelly/jobsheet-importer/internal/common"
	"github.com/jamesokelly/jobsheet-importer/internal/entity"
)

// wordSpaceMultiplier: a gap wider than this fraction of the font size
// ends the current word when merging glyph runs into fragments.
const wordSpaceMultiplier = 0.3

// rowBandTolerance is the Y window (points) used only for glyph→word
// merging. Table-level row clustering applies its own tolerance later.
const rowBandTolerance = 2.0

// Extractor reads the text layer of a PDF into word-level fragments.
type Extractor struct {
	log *zap.SugaredLogger
}

func NewExtractor(log *zap.SugaredLogger) *Extractor {
	return &Extractor{log: log}
}

// Extract returns all text fragments in the document, grouped by page in
// reading order. A nil/empty slice with a nil error means the container
// parsed fine but carries no extractable text (e.g. a pure scan).
func (e *Extractor) Extract(ctx context.Context, content []byte) (frags []entity.TextFragment, err error) {
	if len(content) == 0 {
		return nil, common.NewAppError("PDF_EMPTY", "empty file", common.ErrUnreadablePDF)
	}

	// ledongthuc/pdf panics on some malformed containers; fold those into
	// the UnreadablePDF taxonomy instead of crossing the session boundary.
	defer func() {
		if r := recover(); r != nil {
			frags = nil
			err = common.NewAppError("PDF_PANIC", fmt.Sprintf("pdf reader panic: %v", r), common.ErrUnreadablePDF)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, common.NewAppError("PDF_OPEN", "open pdf", common.ErrUnreadablePDF)
	}

	for i := 1; i <= r.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		texts := filterTexts(page.Content().Text)
		if len(texts) == 0 {
			continue
		}
		pageFrags := mergeWords(texts, i-1)
		frags = append(frags, pageFrags...)
	}

	if e.log != nil {
		e.log.Infow("extract.ok", "pages", r.NumPage(), "fragments", len(frags))
	}
	return frags, nil
}

// filterTexts drops empty and newline-only glyphs.
func filterTexts(texts []pdf.Text) []pdf.Text {
	filtered := make([]pdf.Text, 0, len(texts))
	for _, t := range texts {
		if s := strings.TrimSpace(t.S); s != "" {
			filtered = append(filtered, t)
		}
	}
	return filtered
}

// mergeWords groups glyph-level texts into word fragments. The library
// reports one pdf.Text per glyph run (often single characters); adjacent
// runs on the same line whose gap is under a fraction of the font size
// belong to the same word.
func mergeWords(texts []pdf.Text, pageIndex int) []entity.TextFragment {
	rows := groupByLine(texts)

	var frags []entity.TextFragment
	for _, row := range rows {
		sort.Slice(row, func(i, j int) bool { return row[i].X < row[j].X })

		var cur *entity.TextFragment
		var curEnd float64
		for _, t := range row {
			threshold := wordSpaceMultiplier * t.FontSize
			if threshold == 0 {
				threshold = 3.0
			}
			if cur != nil && t.X-curEnd <= threshold {
				cur.Text += t.S
				cur.Width = t.X + t.W - cur.X
				curEnd = t.X + t.W
				continue
			}
			if cur != nil {
				frags = append(frags, *cur)
			}
			cur = &entity.TextFragment{
				Text:      t.S,
				PageIndex: pageIndex,
				X:         t.X,
				Y:         t.Y,
				Width:     t.W,
				Height:    t.FontSize,
			}
			curEnd = t.X + t.W
		}
		if cur != nil {
			frags = append(frags, *cur)
		}
	}
	return frags
}

// groupByLine buckets texts into lines by Y proximity, top of page first.
func groupByLine(texts []pdf.Text) [][]pdf.Text {
	type bucket struct {
		yMin, yMax float64
		texts      []pdf.Text
	}
	var buckets []bucket

	for _, t := range texts {
		placed := false
		for i := range buckets {
			if t.Y >= buckets[i].yMin-rowBandTolerance && t.Y <= buckets[i].yMax+rowBandTolerance {
				buckets[i].texts = append(buckets[i].texts, t)
				if t.Y < buckets[i].yMin {
					buckets[i].yMin = t.Y
				}
				if t.Y > buckets[i].yMax {
					buckets[i].yMax = t.Y
				}
				placed = true
				break
			}
		}
		if !placed {
			buckets = append(buckets, bucket{yMin: t.Y, yMax: t.Y, texts: []pdf.Text{t}})
		}
	}

	sort.Slice(buckets, func(i, j int) bool { return buckets[i].yMax > buckets[j].yMax })

	rows := make([][]pdf.Text, len(buckets))
	for i, b := range buckets {
		rows[i] = b.texts
	}
	return rows
}
