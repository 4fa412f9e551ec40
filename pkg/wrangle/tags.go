package wrangle

import "regexp"

// Tag separation rewrites. Go regexps have no lookahead, so the
// adjacent-tag rule is applied to a fixed point instead.
var (
	adjacentTags = regexp.MustCompile(`(<[A-Za-z0-9]*>)(<[A-Za-z0-9]*>)`)
	trailingTag  = regexp.MustCompile(`(\S+)(<[A-Za-z0-9]*>)(\s+|$)`)
	leadingTag   = regexp.MustCompile(`(^|\s+)(<[A-Za-z0-9]*>)(\S+)`)
	interiorTag  = regexp.MustCompile(`(<[A-Za-z0-9]*>)(\S)`)
)

// IsTag reports whether a token is a markup tag, defined as starting
// and ending with angle brackets.
func IsTag(token string) bool {
	return len(token) >= 2 && token[0] == '<' && token[len(token)-1] == '>'
}

// SeparateTags rewrites a string so that <tags> become standalone
// whitespace-delimited tokens: tags are split away from adjacent tags,
// from the ends of words, and from the middles of words.
func SeparateTags(s string) string {
	for {
		split := adjacentTags.ReplaceAllString(s, "${1} ${2}")
		if split == s {
			break
		}
		s = split
	}
	s = trailingTag.ReplaceAllString(s, "${1} ${2}${3}")
	s = leadingTag.ReplaceAllString(s, "${1}${2} ${3}")
	return interiorTag.ReplaceAllString(s, " ${1} ${2}")
}

// SubtokenizeWords expands each word of a token sequence into its
// characters, keeping tags intact as single tokens.
func SubtokenizeWords(seq []string) [][]string {
	out := make([][]string, len(seq))
	for i, word := range seq {
		if IsTag(word) {
			out[i] = []string{word}
			continue
		}
		chars := make([]string, 0, len(word))
		for _, r := range word {
			chars = append(chars, string(r))
		}
		out[i] = chars
	}
	return out
}
