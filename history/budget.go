package history

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"github.com/martinemde/reactor/activity"
)

// Counter measures text in tokens.
type Counter interface {
	Count(text string) (int, error)
}

// TokenBudget keeps the newest activities whose encoded form fits within
// Limit tokens. The most recent activity is always kept so the prompt never
// loses the observation the model has to respond to.
type TokenBudget struct {
	Counter Counter
	Limit   int
	// Codec renders activities for counting. Defaults to the tag codec.
	Codec activity.Codec
}

func (b TokenBudget) Transform(_ context.Context, acts []activity.Activity) ([]activity.Activity, error) {
	if b.Limit <= 0 || len(acts) == 0 {
		return acts, nil
	}
	counter := b.Counter
	if counter == nil {
		counter = EstimateCounter{}
	}
	codec := b.Codec
	if codec == nil {
		codec = activity.NewTagCodec()
	}

	used := 0
	start := len(acts)
	for i := len(acts) - 1; i >= 0; i-- {
		n, err := counter.Count(codec.Encode(acts[i]))
		if err != nil {
			return nil, fmt.Errorf("count activity %d: %w", i, err)
		}
		if used+n > b.Limit && i < len(acts)-1 {
			break
		}
		used += n
		start = i
	}
	return slices.Clone(acts[start:]), nil
}

// EstimateCounter approximates tokens as one per four characters. It needs
// no vocabulary and suits tests and offline runs.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) (int, error) {
	return (utf8.RuneCountInString(text) + 3) / 4, nil
}

// TiktokenCounter counts tokens with a BPE encoding. The encoding is loaded
// on first use, which may download its vocabulary.
type TiktokenCounter struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// NewTiktokenCounter creates a counter for the named encoding, defaulting to
// cl100k_base.
func NewTiktokenCounter(encoding string) *TiktokenCounter {
	if encoding == "" {
		encoding = "cl100k_base"
	}
	return &TiktokenCounter{encoding: encoding}
}

// NewTiktokenCounterForModel picks the encoding tiktoken associates with
// model, falling back to cl100k_base.
func NewTiktokenCounterForModel(model string) *TiktokenCounter {
	if enc, ok := tiktoken.MODEL_TO_ENCODING[model]; ok {
		return NewTiktokenCounter(enc)
	}
	for prefix, enc := range tiktoken.MODEL_PREFIX_TO_ENCODING {
		if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
			return NewTiktokenCounter(enc)
		}
	}
	return NewTiktokenCounter("")
}

func (c *TiktokenCounter) init() error {
	c.once.Do(func() {
		enc, err := tiktoken.GetEncoding(c.encoding)
		if err != nil {
			c.initErr = fmt.Errorf("init tiktoken encoding %s: %w", c.encoding, err)
			return
		}
		c.enc = enc
	})
	return c.initErr
}

func (c *TiktokenCounter) Count(text string) (int, error) {
	if err := c.init(); err != nil {
		return 0, err
	}
	return len(c.enc.Encode(text, nil, nil)), nil
}

// Name identifies the encoding in logs.
func (c *TiktokenCounter) Name() string {
	return "tiktoken[" + c.encoding + "]"
}
