package contextmgr

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// tokenCounter estimates token counts for budget-based compaction.
// Adapted from pkg/utils.TokenCounter, generalized to the role/content pair
// extracted from a message map rather than a single concrete message type.
type tokenCounter struct {
	encoding *tiktoken.Tiktoken
}

var (
	encodingCache = make(map[string]*tiktoken.Tiktoken)
	encodingMu    sync.RWMutex
)

func newTokenCounter(model string) (*tokenCounter, error) {
	encodingMu.RLock()
	cached, ok := encodingCache[model]
	encodingMu.RUnlock()
	if ok {
		return &tokenCounter{encoding: cached}, nil
	}

	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, fmt.Errorf("contextmgr: failed to load token encoding: %w", err)
		}
	}

	encodingMu.Lock()
	encodingCache[model] = encoding
	encodingMu.Unlock()

	return &tokenCounter{encoding: encoding}, nil
}

// count returns the approximate token cost of one message, including the
// per-message role/delimiter overhead used by OpenAI's counting recipe.
func (tc *tokenCounter) count(role, content string) int {
	const perMessageOverhead = 3
	return perMessageOverhead + len(tc.encoding.Encode(role, nil, nil)) + len(tc.encoding.Encode(content, nil, nil))
}

func (tc *tokenCounter) countAll(messages []map[string]any) int {
	total := 3 // reply priming, matching the teacher's CountMessages
	for _, msg := range messages {
		total += tc.count(stringField(msg, "role"), stringField(msg, "content"))
	}
	return total
}

func stringField(msg map[string]any, key string) string {
	v, ok := msg[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}
