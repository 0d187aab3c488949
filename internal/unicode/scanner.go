package unicode

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Severity of a finding. Block-level characters can hide instructions from
// the user entirely; flag-level ones merely look suspicious.
const (
	SeverityBlock = "block"
	SeverityFlag  = "flag"
)

// Finding is one smuggling indicator detected in a message.
type Finding struct {
	Category    string // "zero-width", "bidi-override", "homoglyph-*", "control-char", "tag-char", "invalid-utf8"
	Description string
	Position    int    // byte offset in the input
	Codepoint   string // e.g. "U+200B"
	Severity    string
}

// ScanResult holds the output of a message scan.
type ScanResult struct {
	Clean    bool
	Findings []Finding
	// Sanitized is the input with smuggling characters removed.
	Sanitized string
	// RawHex lists non-ASCII codepoints for forensic logging.
	RawHex string
}

// HasBlocking reports whether any finding is block severity.
func (r ScanResult) HasBlocking() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// Categories returns the distinct finding categories, in detection order.
func (r ScanResult) Categories() []string {
	var cats []string
	seen := map[string]bool{}
	for _, f := range r.Findings {
		if !seen[f.Category] {
			seen[f.Category] = true
			cats = append(cats, f.Category)
		}
	}
	return cats
}

// Scan inspects a message for characters used to smuggle instructions past
// a reader: invisible codepoints, direction overrides, tag characters, and
// lookalike letters from other scripts.
func Scan(input string) ScanResult {
	result := ScanResult{Clean: true}
	var sanitized strings.Builder
	var hexParts []string

	i := 0
	for i < len(input) {
		r, size := utf8.DecodeRuneInString(input[i:])

		if r == utf8.RuneError && size == 1 {
			result.Clean = false
			result.Findings = append(result.Findings, Finding{
				Category:    "invalid-utf8",
				Description: "Invalid UTF-8 byte sequence",
				Position:    i,
				Codepoint:   fmt.Sprintf("0x%02X", input[i]),
				Severity:    SeverityBlock,
			})
			hexParts = append(hexParts, fmt.Sprintf("%02X", input[i]))
			i++
			continue
		}

		if finding, found := classifyRune(r, i); found {
			result.Clean = false
			result.Findings = append(result.Findings, finding)
			// Smuggling characters never reach the sanitized output.
			hexParts = append(hexParts, fmt.Sprintf("U+%04X", r))
			i += size
			continue
		}

		if r > 127 {
			hexParts = append(hexParts, fmt.Sprintf("U+%04X", r))
		}

		sanitized.WriteRune(r)
		i += size
	}

	result.Sanitized = sanitized.String()
	if len(hexParts) > 0 {
		result.RawHex = strings.Join(hexParts, " ")
	}
	return result
}

func classifyRune(r rune, pos int) (Finding, bool) {
	cp := fmt.Sprintf("U+%04X", r)

	if isZeroWidth(r) {
		return Finding{
			Category:    "zero-width",
			Description: fmt.Sprintf("Zero-width character %s can hide content from display", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    SeverityBlock,
		}, true
	}

	if isBidiOverride(r) {
		return Finding{
			Category:    "bidi-override",
			Description: fmt.Sprintf("Bidirectional override %s can make displayed text differ from processed text", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    SeverityBlock,
		}, true
	}

	// Unicode tag characters (U+E0001-U+E007F) carry invisible payloads
	if isTagCharacter(r) {
		return Finding{
			Category:    "tag-char",
			Description: fmt.Sprintf("Unicode tag character %s can smuggle hidden instructions", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    SeverityBlock,
		}, true
	}

	if isUnsafeControl(r) {
		return Finding{
			Category:    "control-char",
			Description: fmt.Sprintf("Control character %s should not appear in messages", cp),
			Position:    pos,
			Codepoint:   cp,
			Severity:    SeverityBlock,
		}, true
	}

	if cat, desc := checkHomoglyph(r); cat != "" {
		return Finding{
			Category:    cat,
			Description: desc,
			Position:    pos,
			Codepoint:   cp,
			Severity:    SeverityFlag,
		}, true
	}

	return Finding{}, false
}

func isZeroWidth(r rune) bool {
	switch r {
	case '​', // ZERO WIDTH SPACE
		'‌', // ZERO WIDTH NON-JOINER
		'‍', // ZERO WIDTH JOINER
		'\uFEFF', // ZERO WIDTH NO-BREAK SPACE (BOM)
		'⁠', // WORD JOINER
		'᠎', // MONGOLIAN VOWEL SEPARATOR
		'‎', // LEFT-TO-RIGHT MARK
		'‏': // RIGHT-TO-LEFT MARK
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	switch r {
	case '‪', // LEFT-TO-RIGHT EMBEDDING
		'‫', // RIGHT-TO-LEFT EMBEDDING
		'‬', // POP DIRECTIONAL FORMATTING
		'‭', // LEFT-TO-RIGHT OVERRIDE
		'‮', // RIGHT-TO-LEFT OVERRIDE
		'⁦', // LEFT-TO-RIGHT ISOLATE
		'⁧', // RIGHT-TO-LEFT ISOLATE
		'⁨', // FIRST STRONG ISOLATE
		'⁩': // POP DIRECTIONAL ISOLATE
		return true
	}
	return false
}

func isTagCharacter(r rune) bool {
	return r >= 0xE0001 && r <= 0xE007F
}

func isUnsafeControl(r rune) bool {
	// Tab, newline and carriage return are legitimate in messages
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	if r >= 0x00 && r <= 0x1F {
		return true
	}
	if r == 0x7F {
		return true
	}
	// C1 control characters
	if r >= 0x80 && r <= 0x9F {
		return true
	}
	return false
}

// checkHomoglyph detects characters from non-Latin scripts that visually
// resemble Latin letters, the mechanism behind homograph attacks.
func checkHomoglyph(r rune) (category string, description string) {
	cp := fmt.Sprintf("U+%04X", r)

	if unicode.Is(unicode.Cyrillic, r) {
		if confusable, ok := cyrillicHomoglyphs[r]; ok {
			return "homoglyph-cyrillic",
				fmt.Sprintf("Cyrillic %s looks like Latin '%c'", cp, confusable)
		}
	}

	if unicode.Is(unicode.Greek, r) {
		if confusable, ok := greekHomoglyphs[r]; ok {
			return "homoglyph-greek",
				fmt.Sprintf("Greek %s looks like Latin '%c'", cp, confusable)
		}
	}

	return "", ""
}

// Cyrillic characters that are visually confusable with Latin characters
var cyrillicHomoglyphs = map[rune]rune{
	'а': 'a', // CYRILLIC SMALL LETTER A
	'А': 'A', // CYRILLIC CAPITAL LETTER A
	'В': 'B', // CYRILLIC CAPITAL LETTER VE
	'с': 'c', // CYRILLIC SMALL LETTER ES
	'С': 'C', // CYRILLIC CAPITAL LETTER ES
	'е': 'e', // CYRILLIC SMALL LETTER IE
	'Е': 'E', // CYRILLIC CAPITAL LETTER IE
	'Н': 'H', // CYRILLIC CAPITAL LETTER EN
	'і': 'i', // CYRILLIC SMALL LETTER BYELORUSSIAN-UKRAINIAN I
	'І': 'I', // CYRILLIC CAPITAL LETTER BYELORUSSIAN-UKRAINIAN I
	'К': 'K', // CYRILLIC CAPITAL LETTER KA
	'М': 'M', // CYRILLIC CAPITAL LETTER EM
	'о': 'o', // CYRILLIC SMALL LETTER O
	'О': 'O', // CYRILLIC CAPITAL LETTER O
	'р': 'p', // CYRILLIC SMALL LETTER ER
	'Р': 'P', // CYRILLIC CAPITAL LETTER ER
	'Т': 'T', // CYRILLIC CAPITAL LETTER TE
	'х': 'x', // CYRILLIC SMALL LETTER HA
	'Х': 'X', // CYRILLIC CAPITAL LETTER HA
	'у': 'y', // CYRILLIC SMALL LETTER U
	'У': 'Y', // CYRILLIC CAPITAL LETTER U
}

// Greek characters that are visually confusable with Latin characters
var greekHomoglyphs = map[rune]rune{
	'Α': 'A', // GREEK CAPITAL LETTER ALPHA
	'Β': 'B', // GREEK CAPITAL LETTER BETA
	'Ε': 'E', // GREEK CAPITAL LETTER EPSILON
	'Η': 'H', // GREEK CAPITAL LETTER ETA
	'Ι': 'I', // GREEK CAPITAL LETTER IOTA
	'Κ': 'K', // GREEK CAPITAL LETTER KAPPA
	'Μ': 'M', // GREEK CAPITAL LETTER MU
	'Ν': 'N', // GREEK CAPITAL LETTER NU
	'Ο': 'O', // GREEK CAPITAL LETTER OMICRON
	'ο': 'o', // GREEK SMALL LETTER OMICRON
	'Ρ': 'P', // GREEK CAPITAL LETTER RHO
	'Τ': 'T', // GREEK CAPITAL LETTER TAU
	'Χ': 'X', // GREEK CAPITAL LETTER CHI
	'Υ': 'Y', // GREEK CAPITAL LETTER UPSILON
	'Ζ': 'Z', // GREEK CAPITAL LETTER ZETA
}
