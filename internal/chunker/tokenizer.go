package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"
)

// GPT2Encoding is the byte-pair encoding used by GPT-2.
const GPT2Encoding = "r50k_base"

// TiktokenTokenizer counts tokens with a tiktoken byte-pair encoding.
type TiktokenTokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the named encoding. The first call for an
// encoding downloads its ranks file unless TIKTOKEN_CACHE_DIR holds it.
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = GPT2Encoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{enc: enc}, nil
}

// Count returns the number of tokens in text. Special tokens such as
// <|endoftext|> appearing in source code are counted as ordinary text.
func (t *TiktokenTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.EncodeOrdinary(text))
}

// WordTokenizer counts whitespace-separated words. It needs no model files.
type WordTokenizer struct{}

// Count returns the number of whitespace-separated words in text.
func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// NewTokenizer builds a tokenizer by name: "tiktoken" or "words".
func NewTokenizer(name string) (Tokenizer, error) {
	switch name {
	case "", "tiktoken":
		return NewTiktokenTokenizer(GPT2Encoding)
	case "words":
		return WordTokenizer{}, nil
	default:
		return nil, fmt.Errorf("unsupported tokenizer %q (use tiktoken or words)", name)
	}
}
