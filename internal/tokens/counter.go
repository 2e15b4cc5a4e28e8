// Package tokens counts tokens for chunk sizing and context budgeting.
//
// Count is exact for the cl100k_base encoding used by current OpenAI models
// and close enough for other backends. Estimate is a cheap character-based
// approximation used only to skip exact counts that cannot change a decision.
package tokens

import (
	"fmt"
	"math"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding is the BPE encoding used for exact counts.
const DefaultEncoding = "cl100k_base"

// CharsPerToken is the ratio behind Estimate.
const CharsPerToken = 4

// EstimateErrorMargin is the relative error Estimate is trusted within.
// FitsWithin only decides from the estimate outside this band.
const EstimateErrorMargin = 0.25

// Sizer reports the token size of text.
type Sizer interface {
	Count(text string) int
}

var loaderOnce sync.Once

// Counter counts tokens with a BPE tokenizer.
// It is safe for concurrent use.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter creates a Counter for the named encoding.
// Encodings are loaded from data embedded in the binary, not the network.
func NewCounter(encoding string) (*Counter, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
	})

	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("loading %s encoding: %w", encoding, err)
	}
	return &Counter{enc: enc}, nil
}

// Count returns the exact token count of text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Estimate returns the approximate token count of text.
func (c *Counter) Estimate(text string) int {
	return Estimate(text)
}

// FitsWithin reports whether text is at most budget tokens. The exact count
// only runs when the estimate lands inside the error margin around budget.
func (c *Counter) FitsWithin(text string, budget int) bool {
	return FitsWithin(c, text, budget)
}

// EstimateSizer is a Sizer backed by Estimate, for when no tokenizer is available.
type EstimateSizer struct{}

// Count returns Estimate(text).
func (EstimateSizer) Count(text string) int { return Estimate(text) }

// Estimate returns ceil(runes/4), the fast approximation of a token count.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}

// FitsWithin reports whether text is at most budget tokens according to s,
// using Estimate to short-circuit clear cases.
func FitsWithin(s Sizer, text string, budget int) bool {
	if budget < 0 {
		return false
	}
	est := float64(Estimate(text))
	if est <= float64(budget)*(1-EstimateErrorMargin) {
		return true
	}
	if est > math.Ceil(float64(budget)*(1+EstimateErrorMargin)) {
		return false
	}
	return s.Count(text) <= budget
}
