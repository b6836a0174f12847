package assembler

import (
	"math"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/siherrmann/loregraph/helper"
	"github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/pretrained"
)

// Tokenizer measures text in the unit budgets are defined in.
// Counting must be deterministic and the count of a prefix must never
// exceed the count of the whole text.
type Tokenizer interface {
	CountTokens(text string) int
}

// TokenizerFunc adapts a function to Tokenizer
type TokenizerFunc func(text string) int

// CountTokens calls f
func (f TokenizerFunc) CountTokens(text string) int {
	return f(text)
}

// WordTokenizer counts whitespace separated words
type WordTokenizer struct{}

// CountTokens implements Tokenizer
func (WordTokenizer) CountTokens(text string) int {
	return len(strings.Fields(text))
}

// HeuristicTokenizer estimates tokens from the rune count
type HeuristicTokenizer struct {
	CharsPerToken float64
}

// NewHeuristicTokenizer returns the usual four characters per token estimate
func NewHeuristicTokenizer() *HeuristicTokenizer {
	return &HeuristicTokenizer{CharsPerToken: 4.0}
}

// CountTokens implements Tokenizer
func (h *HeuristicTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}
	charsPerToken := h.CharsPerToken
	if charsPerToken <= 0 {
		charsPerToken = 4.0
	}
	return int(math.Ceil(float64(utf8.RuneCountInString(text)) / charsPerToken))
}

// HFTokenizer counts tokens with a huggingface tokenizer.json, usually the
// one shipped next to the embedding model's onnx file.
type HFTokenizer struct {
	mu        sync.Mutex
	tokenizer *tokenizer.Tokenizer
	fallback  Tokenizer
}

// NewHFTokenizer loads a tokenizer.json file
func NewHFTokenizer(path string) (*HFTokenizer, error) {
	tk, err := pretrained.FromFile(path)
	if err != nil {
		return nil, helper.NewError("load tokenizer "+path, err)
	}
	return &HFTokenizer{tokenizer: tk, fallback: NewHeuristicTokenizer()}, nil
}

// CountTokens implements Tokenizer. Special tokens are not counted. Text the
// tokenizer rejects is estimated instead.
func (h *HFTokenizer) CountTokens(text string) int {
	if text == "" {
		return 0
	}

	h.mu.Lock()
	encoding, err := h.tokenizer.EncodeSingle(text, false)
	h.mu.Unlock()
	if err != nil {
		return h.fallback.CountTokens(text)
	}
	return len(encoding.Ids)
}
