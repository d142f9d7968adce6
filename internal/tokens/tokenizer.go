// Package tokens budgets the continuation summary so that a session's report
// cannot blow the next model call's context.
package tokens

import (
	"strings"
	"sync"

	tiktoken "github.com/pkoukk/tiktoken-go"
)

// Tokenizer 精确 token 计数器，tiktoken 不可用时回退到启发式估算
// Tokenizer provides precise token counting with tiktoken and a heuristic
// fallback when the BPE cache is unavailable.
type Tokenizer struct {
	encoder  *tiktoken.Tiktoken
	fallback bool
	mu       sync.RWMutex
}

var (
	defaultTokenizer     *Tokenizer
	defaultTokenizerOnce sync.Once
)

// Default returns the global default tokenizer instance.
func Default() *Tokenizer {
	defaultTokenizerOnce.Do(func() {
		defaultTokenizer = New("cl100k_base")
	})
	return defaultTokenizer
}

// New creates a tokenizer; offline environments without a BPE cache fall back
// to the heuristic.
func New(encodingName string) *Tokenizer {
	t := &Tokenizer{}
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		t.fallback = true
		return t
	}
	t.encoder = enc
	return t
}

// CountText counts tokens for a single text string.
func (t *Tokenizer) CountText(text string) int {
	if text == "" {
		return 0
	}
	if t.fallback {
		return heuristicTokenCount(text)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.encoder.Encode(text, nil, nil))
}

// IsPrecise reports whether precise counting is available.
func (t *Tokenizer) IsPrecise() bool {
	return !t.fallback
}

// Truncate 把文本裁剪到给定 token 预算之内，被截断时追加省略标记。
// Truncate cuts text down to the given token budget, appending an ellipsis
// marker when anything was dropped.
func (t *Tokenizer) Truncate(text string, budget int) string {
	if budget <= 0 || text == "" {
		return ""
	}
	if t.CountText(text) <= budget {
		return text
	}
	runes := []rune(text)
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if t.CountText(string(runes[:mid])) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return strings.TrimRight(string(runes[:lo]), " \t\n") + " …[truncated]"
}

// heuristicTokenCount estimates tokens at ~4 ASCII chars or ~0.67 CJK chars
// per token.
func heuristicTokenCount(text string) int {
	cjk := 0
	ascii := 0
	for _, r := range text {
		if isCJK(r) {
			cjk++
		} else {
			ascii++
		}
	}
	estimate := int(float64(cjk)*1.5 + float64(ascii)*0.25)
	if estimate < 1 {
		estimate = 1
	}
	return estimate
}

func isCJK(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x3000 && r <= 0x303F) ||
		(r >= 0xFF00 && r <= 0xFFEF) ||
		(r >= 0xAC00 && r <= 0xD7AF)
}
