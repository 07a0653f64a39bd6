package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/ledongthuc/pdf"

	"github.com/jamesokelly/jobsheet-importer/internal/common"
)

func TestExtractRejectsEmptyInput(t *testing.T) {
	_, err := NewExtractor(nil).Extract(context.Background(), nil)
	if !errors.Is(err, common.ErrUnreadablePDF) {
		t.Fatalf("err = %v, want ErrUnreadablePDF", err)
	}
}

func TestExtractRejectsGarbageBytes(t *testing.T) {
	inputs := map[string][]byte{
		"text":             []byte("this is not a pdf at all"),
		"truncated header": []byte("%PDF-1.7"),
		"binary":           {0x00, 0x01, 0x02, 0x03, 0xff, 0xfe},
	}
	for name, content := range inputs {
		t.Run(name, func(t *testing.T) {
			frags, err := NewExtractor(nil).Extract(context.Background(), content)
			if !errors.Is(err, common.ErrUnreadablePDF) {
				t.Fatalf("err = %v, want ErrUnreadablePDF", err)
			}
			if frags != nil {
				t.Errorf("fragments = %v, want none", frags)
			}
		})
	}
}

func glyph(s string, x, y, w, size float64) pdf.Text {
	return pdf.Text{S: s, X: x, Y: y, W: w, FontSize: size}
}

func TestMergeWordsJoinsAdjacentGlyphRuns(t *testing.T) {
	// "12345" reported as two runs with a sub-threshold gap, then a
	// clearly separated word on the same line.
	texts := []pdf.Text{
		glyph("123", 40, 700, 15, 10),
		glyph("45", 56, 700, 10, 10), // gap 1pt, under 0.3*10
		glyph("AB12CDE", 120, 700, 40, 10),
	}
	frags := mergeWords(texts, 0)
	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want 2: %+v", len(frags), frags)
	}
	if frags[0].Text != "12345" {
		t.Errorf("merged word = %q, want 12345", frags[0].Text)
	}
	if frags[0].Width != 26 {
		t.Errorf("merged width = %v, want 26", frags[0].Width)
	}
	if frags[1].Text != "AB12CDE" {
		t.Errorf("second word = %q", frags[1].Text)
	}
}

func TestMergeWordsKeepsLinesApart(t *testing.T) {
	texts := []pdf.Text{
		glyph("first", 40, 700, 20, 10),
		glyph("second", 40, 680, 25, 10),
	}
	frags := mergeWords(texts, 2)
	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want 2", len(frags))
	}
	if frags[0].Text != "first" || frags[1].Text != "second" {
		t.Errorf("line order = %q, %q; want top of page first", frags[0].Text, frags[1].Text)
	}
	if frags[0].PageIndex != 2 {
		t.Errorf("page index = %d, want 2", frags[0].PageIndex)
	}
}

func TestMergeWordsZeroFontSizeFallbackThreshold(t *testing.T) {
	texts := []pdf.Text{
		glyph("a", 40, 700, 4, 0),
		glyph("b", 46, 700, 4, 0), // gap 2pt, under the 3pt fallback
		glyph("c", 60, 700, 4, 0), // gap 10pt, separate word
	}
	frags := mergeWords(texts, 0)
	if len(frags) != 2 {
		t.Fatalf("fragments = %d, want 2", len(frags))
	}
	if frags[0].Text != "ab" || frags[1].Text != "c" {
		t.Errorf("words = %q, %q", frags[0].Text, frags[1].Text)
	}
}

func TestFilterTextsDropsWhitespaceGlyphs(t *testing.T) {
	texts := []pdf.Text{
		glyph(" ", 10, 700, 3, 10),
		glyph("\n", 13, 700, 0, 10),
		glyph("x", 16, 700, 5, 10),
	}
	got := filterTexts(texts)
	if len(got) != 1 || got[0].S != "x" {
		t.Errorf("filtered = %+v", got)
	}
}
