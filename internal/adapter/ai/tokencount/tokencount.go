// Package tokencount estimates token usage for completion API calls.
//
// It uses tiktoken-go, a Go port of OpenAI's tiktoken library, so prompt
// budgets can be tracked against real tokenizer output rather than character
// heuristics.
package tokencount

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Counter provides thread-safe token counting with per-model encoding cache.
type Counter struct {
	mu    sync.RWMutex
	cache map[string]*tiktoken.Tiktoken
}

// NewCounter creates a token counter.
func NewCounter() *Counter {
	return &Counter{cache: make(map[string]*tiktoken.Tiktoken)}
}

// DefaultCounter is a process-wide counter instance.
var DefaultCounter = NewCounter()

func (c *Counter) encodingFor(model string) (*tiktoken.Tiktoken, error) {
	model = normalizeModel(model)

	c.mu.RLock()
	enc, ok := c.cache[model]
	c.mu.RUnlock()
	if ok {
		return enc, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if enc, ok := c.cache[model]; ok {
		return enc, nil
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// cl100k_base covers GPT-4-family and most modern models.
		enc, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}
	c.cache[model] = enc
	return enc, nil
}

func normalizeModel(model string) string {
	model = strings.ToLower(model)
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	switch {
	case strings.HasPrefix(model, "gpt-3.5"):
		return "gpt-3.5-turbo"
	case strings.HasPrefix(model, "gpt-"):
		return "gpt-4"
	default:
		return "gpt-4"
	}
}

// CountChatTokens estimates prompt tokens for a chat completion request,
// including the per-message framing overhead of OpenAI-compatible APIs.
// Each element of contents is one message body. Falls back to a
// ~4 chars/token estimate when no encoding is available.
func (c *Counter) CountChatTokens(model string, contents ...string) int {
	enc, err := c.encodingFor(model)
	if err != nil {
		n := 0
		for _, s := range contents {
			n += len(s) / 4
		}
		return n
	}
	const tokensPerMessage = 4
	n := 3 // reply priming
	for _, s := range contents {
		n += tokensPerMessage
		n += len(enc.Encode(s, nil, nil))
	}
	return n
}
