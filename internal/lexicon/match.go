package lexicon

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Kind is how a keyword occurred in a text.
type Kind int

const (
	// NoMatch means the keyword does not occur.
	NoMatch Kind = iota
	// Implicit means the keyword only occurs inside a longer word ("test" in "testing").
	Implicit
	// Explicit means the keyword occurs at word boundaries. Han-script keywords
	// always satisfy boundaries since the script does not separate words.
	Explicit
)

// Tokenize splits text into lowercase tokens. Each Han rune is its own token;
// runs of other letters and digits form one token.
func Tokenize(text string) []string {
	var tokens []string
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, word.String())
			word.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			word.WriteRune(r)
		case (r == '-' || r == '_') && word.Len() > 0:
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// TokenCount returns len(Tokenize(text)).
func TokenCount(text string) int {
	return len(Tokenize(text))
}

// MatchKind reports how keyword occurs in text.
func MatchKind(text, keyword string) Kind {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return NoMatch
	}
	kind := NoMatch
	scan(strings.ToLower(text), kw, func(_, _ int, bounded bool) bool {
		if bounded {
			kind = Explicit
			return false
		}
		kind = Implicit
		return true
	})
	return kind
}

// FindAny returns the first word in words that occurs in text at word boundaries.
func FindAny(text string, words []string) (string, bool) {
	lower := strings.ToLower(text)
	for _, w := range words {
		kw := strings.ToLower(strings.TrimSpace(w))
		if kw == "" {
			continue
		}
		found := false
		scan(lower, kw, func(_, _ int, bounded bool) bool {
			found = bounded
			return !bounded
		})
		if found {
			return w, true
		}
	}
	return "", false
}

// CountOccurrences counts non-overlapping bounded occurrences of any of words,
// preferring longer words where occurrences overlap.
func CountOccurrences(text string, words []string) int {
	lower := strings.ToLower(text)
	covered := make([]bool, len(lower))
	count := 0
	for _, kw := range byLengthDesc(words) {
		scan(lower, kw, func(start, end int, bounded bool) bool {
			if !bounded {
				return true
			}
			for i := start; i < end; i++ {
				if covered[i] {
					return true
				}
			}
			for i := start; i < end; i++ {
				covered[i] = true
			}
			count++
			return true
		})
	}
	return count
}

// Span is the byte range of a delimiter occurrence.
type Span struct {
	Start, End int
	Word       string
}

// FindAll returns every non-overlapping bounded occurrence of any delimiter,
// ordered by position. Longer delimiters win at the same position.
func FindAll(text string, delims []string) []Span {
	lower := foldAligned(text)
	var spans []Span
	for _, kw := range byLengthDesc(delims) {
		scan(lower, kw, func(start, end int, bounded bool) bool {
			if bounded {
				spans = append(spans, Span{Start: start, End: end, Word: kw})
			}
			return true
		})
	}
	sort.SliceStable(spans, func(i, j int) bool {
		if spans[i].Start != spans[j].Start {
			return spans[i].Start < spans[j].Start
		}
		return spans[i].End > spans[j].End
	})

	var out []Span
	last := -1
	for _, s := range spans {
		if s.Start < last {
			continue
		}
		out = append(out, s)
		last = s.End
	}
	return out
}

// Split cuts text at every delimiter occurrence and returns the trimmed, non-empty pieces.
func Split(text string, delims []string) []string {
	src := alignedSource(text)
	var items []string
	prev := 0
	for _, s := range FindAll(text, delims) {
		items = appendItem(items, src[prev:s.Start])
		prev = s.End
	}
	return appendItem(items, src[prev:])
}

// TrimItem strips surrounding whitespace, sentence punctuation and list separators.
func TrimItem(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || strings.ContainsRune("。.!！?？:：\"'“”，,、；;", r)
	})
}

func appendItem(items []string, s string) []string {
	if s = TrimItem(s); s != "" {
		items = append(items, s)
	}
	return items
}

// foldAligned lowercases text. Callers slice the original text with offsets
// found in the folded text, so alignedSource must be used for slicing.
func foldAligned(text string) string {
	return strings.ToLower(text)
}

// alignedSource returns text when lowercasing preserves byte offsets, otherwise
// the lowercased text so offsets from foldAligned stay valid.
func alignedSource(text string) string {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		return lower
	}
	return text
}

func byLengthDesc(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			out = append(out, w)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return utf8.RuneCountInString(out[i]) > utf8.RuneCountInString(out[j])
	})
	return out
}

// scan calls fn for each occurrence of kw in s until fn returns false.
func scan(s, kw string, fn func(start, end int, bounded bool) bool) {
	for i := 0; i <= len(s)-len(kw); {
		j := strings.Index(s[i:], kw)
		if j < 0 {
			return
		}
		start := i + j
		end := start + len(kw)
		if !fn(start, end, bounded(s, start, end, kw)) {
			return
		}
		_, size := utf8.DecodeRuneInString(s[start:])
		i = start + size
	}
}

func bounded(s string, start, end int, kw string) bool {
	first, _ := utf8.DecodeRuneInString(kw)
	last, _ := utf8.DecodeLastRuneInString(kw)
	if isWordRune(first) && start > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:start]); isWordRune(r) {
			return false
		}
	}
	if isWordRune(last) && end < len(s) {
		if r, _ := utf8.DecodeRuneInString(s[end:]); isWordRune(r) {
			return false
		}
	}
	return true
}

func isWordRune(r rune) bool {
	return (unicode.IsLetter(r) || unicode.IsDigit(r)) && !unicode.Is(unicode.Han, r)
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
