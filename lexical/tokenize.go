package lexical

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/blevesearch/segment"
)

// unit is one indexable token before n-gram expansion.
type unit struct {
	text string
	cjk  bool
}

// minWordRunes drops single letter or digit words, matching the common
// two-character token pattern of TF-IDF vectorizers. CJK characters are
// exempt since each one carries meaning.
const minWordRunes = 2

func tokenize(text string) []unit {
	var units []unit
	seg := segment.NewWordSegmenterDirect([]byte(text))
	for seg.Segment() {
		switch seg.Type() {
		case segment.Ideo, segment.Kana:
			units = appendChars(units, string(seg.Bytes()))
		case segment.Letter, segment.Number:
			units = appendWord(units, string(seg.Bytes()))
		}
	}
	if seg.Err() != nil {
		return scan(text)
	}
	return units
}

// scan is a coarse tokenizer used when segmentation fails on malformed input.
func scan(text string) []unit {
	var units []unit
	var word strings.Builder
	flush := func() {
		if word.Len() > 0 {
			units = appendWord(units, word.String())
			word.Reset()
		}
	}
	for _, r := range text {
		switch {
		case isCJK(r):
			flush()
			units = append(units, unit{text: string(r), cjk: true})
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			word.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return units
}

func appendChars(units []unit, token string) []unit {
	for _, r := range token {
		if unicode.IsLetter(r) || unicode.IsNumber(r) {
			units = append(units, unit{text: string(r), cjk: true})
		}
	}
	return units
}

func appendWord(units []unit, token string) []unit {
	word := strings.ToLower(token)
	if utf8.RuneCountInString(word) < minWordRunes {
		return units
	}
	return append(units, unit{text: word})
}

func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r)
}

// Terms returns the unigram and bigram terms of text in order of appearance.
func Terms(text string) []string {
	units := tokenize(text)
	if len(units) == 0 {
		return nil
	}

	terms := make([]string, 0, 2*len(units)-1)
	for _, u := range units {
		terms = append(terms, u.text)
	}
	for i := 1; i < len(units); i++ {
		prev, cur := units[i-1], units[i]
		if prev.cjk && cur.cjk {
			terms = append(terms, prev.text+cur.text)
		} else {
			terms = append(terms, prev.text+" "+cur.text)
		}
	}
	return terms
}
