package discussion

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// arabicFolds maps letter variants that decomposition does not reach.
var arabicFolds = map[rune]rune{
	'ٱ': 'ا', // alef wasla
	'ى': 'ي', // alef maksura
	'ة': 'ه', // teh marbuta
	'؟': '?',
	'ـ': -1, // tatweel
}

// Normalize lowercases text, folds Arabic letter variants (alef forms, hamza
// carriers, alef maksura, teh marbuta) to canonical letters, strips
// diacritics, replaces every other non-letter/digit with a space, and
// collapses whitespace. A trailing '?' or '!' is kept.
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, text)
	if err != nil {
		stripped = text
	}

	var b strings.Builder
	b.Grow(len(stripped))
	for _, r := range stripped {
		if mapped, ok := arabicFolds[r]; ok {
			if mapped < 0 {
				continue
			}
			r = mapped
		}
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		case r == '?' || r == '!':
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}

	fields := strings.Fields(b.String())
	terminal := ""
	if n := len(fields); n > 0 {
		last := fields[n-1]
		if trimmed := strings.TrimRight(last, "?!"); trimmed != last {
			terminal = last[len(trimmed) : len(trimmed)+1]
			fields[n-1] = trimmed
		}
	}
	for i, f := range fields {
		fields[i] = strings.Trim(f, "?!")
	}
	out := strings.Join(strings.Fields(strings.Join(fields, " ")), " ")
	if out == "" {
		return ""
	}
	return out + terminal
}

// Words splits normalized text into words, dropping terminal punctuation.
func Words(normalized string) []string {
	return strings.Fields(strings.TrimRight(normalized, "?!"))
}

// AsNamedLine renders a transcript line attributed to a speaker.
func AsNamedLine(name, text string) string {
	name = strings.TrimSpace(name)
	text = strings.TrimSpace(text)
	if name == "" {
		return text
	}
	return name + ": " + text
}

// wordSet builds a lookup of normalized single words so keys always match
// what Words returns.
func wordSet(words ...string) map[string]bool {
	set := make(map[string]bool, len(words))
	for _, w := range words {
		if n := strings.TrimRight(Normalize(w), "?!"); n != "" {
			set[n] = true
		}
	}
	return set
}

// phraseList normalizes multi-word phrases for containsPhrase.
func phraseList(phrases ...string) []string {
	out := make([]string, 0, len(phrases))
	for _, p := range phrases {
		if n := strings.TrimRight(Normalize(p), "?!"); n != "" {
			out = append(out, n)
		}
	}
	return out
}
