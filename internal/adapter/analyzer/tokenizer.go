package analyzer

import (
	"strings"
	"unicode"
)

// Tokenizer splits text into lowercase word tokens and derives the hashed
// features used by the offline embedding provider.
type Tokenizer struct {
	stopwords map[string]struct{}
	minLen    int
	bigrams   bool
}

// NewTokenizer creates a Tokenizer. With bigrams enabled, Features also
// emits adjacent word pairs.
func NewTokenizer(bigrams bool) *Tokenizer {
	return &Tokenizer{
		stopwords: defaultStopwords(),
		minLen:    2,
		bigrams:   bigrams,
	}
}

// Tokenize splits text into tokens, dropping stopwords and very short words.
func (t *Tokenizer) Tokenize(text string) []string {
	words := splitWords(text)
	tokens := make([]string, 0, len(words))

	for _, word := range words {
		word = strings.ToLower(word)
		if len([]rune(word)) < t.minLen {
			continue
		}
		if _, isStop := t.stopwords[word]; isStop {
			continue
		}
		tokens = append(tokens, word)
	}

	return tokens
}

// Features returns the tokens of text followed by "a b" bigrams when enabled.
func (t *Tokenizer) Features(text string) []string {
	tokens := t.Tokenize(text)
	if !t.bigrams || len(tokens) < 2 {
		return tokens
	}

	features := make([]string, 0, 2*len(tokens)-1)
	features = append(features, tokens...)
	for i := 1; i < len(tokens); i++ {
		features = append(features, tokens[i-1]+" "+tokens[i])
	}
	return features
}

// splitWords splits text into words using unicode letter and digit classes.
func splitWords(text string) []string {
	var words []string
	var current strings.Builder

	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current.WriteRune(r)
		} else if current.Len() > 0 {
			words = append(words, current.String())
			current.Reset()
		}
	}
	if current.Len() > 0 {
		words = append(words, current.String())
	}

	return words
}

func defaultStopwords() map[string]struct{} {
	stops := []string{
		"a", "an", "and", "are", "as", "at", "be", "by", "for",
		"from", "has", "he", "in", "is", "it", "its", "of", "on",
		"that", "the", "to", "was", "were", "will", "with", "this",
		"have", "had", "but", "not", "you", "your", "we", "our",
		"they", "their", "she", "her", "his", "if", "or", "so",
		"no", "can", "do", "does", "did", "been", "being", "would",
		"could", "should", "may", "might", "must", "shall", "which",
		"who", "whom", "what", "when", "where", "why", "how", "all",
		"each", "every", "both", "few", "more", "most", "other",
		"some", "such", "than", "too", "very", "just", "also",
	}
	m := make(map[string]struct{}, len(stops))
	for _, s := range stops {
		m[s] = struct{}{}
	}
	return m
}
