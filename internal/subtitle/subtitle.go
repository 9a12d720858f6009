// Package subtitle renders bilingual ASS subtitle documents from timed
// transcript segments and their translations.
//
// Layout in all cases keeps both subtitle languages in the bottom quarter of
// the frame: the Chinese line (yellow, CJK font) stacks above the English
// line (white, Latin font). For source languages other than Chinese or
// English the original text is shown at the top of the frame as a third
// line.
package subtitle

import (
	"fmt"
	"math"
	"os"
	"strings"
	"unicode"

	"sublingo/internal/language"
	"sublingo/internal/services"
	"sublingo/internal/transcribe"
)

// ASS colours are &HAABBGGRR.
const (
	colourWhite   = "&H00FFFFFF"
	colourYellow  = "&H0000FFFF"
	colourClear   = "&H00000000"
	colourOutline = "&H00000000"
	colourShadow  = "&H64000000"
)

const (
	fontCJK   = "Noto Sans CJK SC"
	fontLatin = "Arial"
)

// Style names referenced by dialogue events.
const (
	styleLatinTop       = "LatinTop"
	styleCJKTop         = "CJKTop"
	styleLatinBottom    = "LatinBottom"
	styleCJKBottom      = "CJKBottom"
	styleCJKMidBottom   = "CJKMidBottom"
	styleLatinMidBottom = "LatinMidBottom"
)

// Cue is one subtitle event: a transcript segment plus its translations
// keyed by target language code.
type Cue struct {
	Start        float64
	End          float64
	Original     string
	Translations map[string]string
}

// Document is a complete subtitle track ready to render.
type Document struct {
	SourceLanguage string
	Cues           []Cue
}

// Build pairs transcript segments with their per-language translations into
// a Document. Every translation list must contain exactly one entry per
// segment; anything else means the translator broke its contract and the
// document cannot be trusted.
func Build(segments []transcribe.Segment, sourceLang string, translations map[string][]string) (Document, error) {
	doc := Document{SourceLanguage: language.Normalize(sourceLang)}
	for target, lines := range translations {
		if len(lines) != len(segments) {
			return Document{}, services.Wrap(
				services.ErrTranslation,
				"synthesize",
				"build document",
				fmt.Sprintf("translation count mismatch for %s: %d segments, %d translations", target, len(segments), len(lines)),
				nil,
			)
		}
	}

	doc.Cues = make([]Cue, 0, len(segments))
	for i, segment := range segments {
		cue := Cue{
			Start:        segment.Start,
			End:          segment.End,
			Original:     segment.Text,
			Translations: make(map[string]string, len(translations)),
		}
		for target, lines := range translations {
			cue.Translations[target] = lines[i]
		}
		doc.Cues = append(doc.Cues, cue)
	}
	return doc, nil
}

// LinesPerCue reports how many dialogue events each cue renders to, which
// depends only on the source language.
func (d Document) LinesPerCue() int {
	switch d.SourceLanguage {
	case language.Chinese, language.English:
		return 2
	default:
		return 3
	}
}

// EventCount reports the total number of dialogue events Render will emit.
func (d Document) EventCount() int {
	return len(d.Cues) * d.LinesPerCue()
}

// Render produces the complete ASS document text.
func (d Document) Render() string {
	var b strings.Builder
	writeHeader(&b)

	for _, cue := range d.Cues {
		switch d.SourceLanguage {
		case language.Chinese:
			writeDialogue(&b, cue, styleCJKMidBottom, cue.Original)
			writeDialogue(&b, cue, styleLatinBottom, cue.Translations[language.English])
		case language.English:
			writeDialogue(&b, cue, styleCJKMidBottom, cue.Translations[language.Chinese])
			writeDialogue(&b, cue, styleLatinBottom, cue.Original)
		default:
			writeDialogue(&b, cue, topStyleFor(cue.Original), cue.Original)
			writeDialogue(&b, cue, styleCJKMidBottom, cue.Translations[language.Chinese])
			writeDialogue(&b, cue, styleLatinBottom, cue.Translations[language.English])
		}
	}
	return b.String()
}

// WriteFile renders the document to disk with a UTF-8 BOM so players that
// sniff encodings pick up CJK text correctly.
func (d Document) WriteFile(path string) error {
	content := append([]byte{0xEF, 0xBB, 0xBF}, []byte(d.Render())...)
	if err := os.WriteFile(path, content, 0o644); err != nil {
		return fmt.Errorf("write subtitle file: %w", err)
	}
	return nil
}

func writeHeader(b *strings.Builder) {
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("PlayResX: 1280\n")
	b.WriteString("PlayResY: 720\n")
	b.WriteString("ScaledBorderAndShadow: yes\n")
	b.WriteString("YCbCr Matrix: None\n\n")

	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	// Alignment: 2 = bottom-center, 8 = top-center.
	writeStyle(b, styleLatinTop, fontLatin, 32, 8, 20, colourWhite)
	writeStyle(b, styleCJKTop, fontCJK, 36, 8, 20, colourYellow)
	writeStyle(b, styleLatinBottom, fontLatin, 32, 2, 12, colourWhite)
	writeStyle(b, styleCJKBottom, fontCJK, 36, 2, 12, colourYellow)
	// Mid-bottom sits one 36pt line above the bottom row.
	writeStyle(b, styleCJKMidBottom, fontCJK, 36, 2, 62, colourYellow)
	writeStyle(b, styleLatinMidBottom, fontLatin, 32, 2, 62, colourWhite)
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
}

func writeStyle(b *strings.Builder, name, font string, size, alignment, marginV int, colour string) {
	fmt.Fprintf(b,
		"Style: %s,%s,%d,%s,%s,%s,%s,0,0,0,0,100,100,0,0,1,2,1,%d,10,10,%d,1\n",
		name, font, size, colour, colourClear, colourOutline, colourShadow, alignment, marginV,
	)
}

func writeDialogue(b *strings.Builder, cue Cue, style, text string) {
	fmt.Fprintf(b, "Dialogue: 0,%s,%s,%s,,0,0,0,,%s\n",
		formatTimestamp(cue.Start), formatTimestamp(cue.End), style, escapeText(text))
}

// formatTimestamp converts seconds to the ASS h:mm:ss.cc form.
func formatTimestamp(seconds float64) string {
	if seconds < 0 {
		seconds = 0
	}
	whole := int(seconds)
	h := whole / 3600
	m := (whole % 3600) / 60
	s := whole % 60
	cs := int(math.Round((seconds - float64(whole)) * 100))
	if cs >= 100 {
		cs = 99
	}
	return fmt.Sprintf("%d:%02d:%02d.%02d", h, m, s, cs)
}

// escapeText neutralizes characters with special meaning in ASS dialogue:
// newlines become soft line breaks and literal braces are escaped so they
// are not read as override tags.
func escapeText(text string) string {
	replacer := strings.NewReplacer(
		"\n", `\N`,
		"{", `\{`,
		"}", `\}`,
	)
	return replacer.Replace(text)
}

// topStyleFor picks the top-line style by script: CJK-heavy originals use
// the CJK font so third-language text like Japanese stays readable.
func topStyleFor(text string) string {
	var cjk, total int
	for _, r := range text {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			continue
		}
		total++
		if unicode.Is(unicode.Han, r) ||
			unicode.Is(unicode.Hiragana, r) ||
			unicode.Is(unicode.Katakana, r) ||
			unicode.Is(unicode.Hangul, r) {
			cjk++
		}
	}
	if total > 0 && cjk*2 >= total {
		return styleCJKTop
	}
	return styleLatinTop
}
