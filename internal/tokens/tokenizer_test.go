package tokens

import (
	"strings"
	"testing"
)

func TestCountText(t *testing.T) {
	tok := New("cl100k_base")

	if got := tok.CountText(""); got != 0 {
		t.Fatalf("CountText(\"\") = %d, want 0", got)
	}
	short := tok.CountText("hello")
	long := tok.CountText("hello world, this is a longer sentence with more words")
	if short < 1 {
		t.Fatalf("CountText(hello) = %d, want >= 1", short)
	}
	if long <= short {
		t.Fatalf("longer text counted %d tokens, shorter counted %d", long, short)
	}
}

func TestHeuristicFallback(t *testing.T) {
	tok := New("no-such-encoding")
	if tok.IsPrecise() {
		t.Fatalf("unknown encoding reported as precise")
	}
	if got := tok.CountText("hi"); got < 1 {
		t.Fatalf("fallback CountText(hi) = %d, want >= 1", got)
	}
	ascii := tok.CountText(strings.Repeat("a", 40))
	cjk := tok.CountText(strings.Repeat("好", 40))
	if cjk <= ascii {
		t.Fatalf("CJK estimate %d not higher than ASCII estimate %d", cjk, ascii)
	}
}

func TestTruncate(t *testing.T) {
	tok := New("no-such-encoding") // deterministic heuristic counts

	if got := tok.Truncate("anything", 0); got != "" {
		t.Fatalf("Truncate with zero budget = %q, want empty", got)
	}
	if got := tok.Truncate("short", 100); got != "short" {
		t.Fatalf("Truncate under budget = %q, want unchanged", got)
	}

	long := strings.Repeat("word ", 200)
	got := tok.Truncate(long, 10)
	if !strings.HasSuffix(got, " …[truncated]") {
		t.Fatalf("truncated text missing marker: %q", got)
	}
	if len(got) >= len(long) {
		t.Fatalf("Truncate did not shrink the text")
	}
	kept := strings.TrimSuffix(got, " …[truncated]")
	if tok.CountText(kept) > 10 {
		t.Fatalf("kept prefix exceeds budget: %d tokens", tok.CountText(kept))
	}
}

func TestDefaultIsSingleton(t *testing.T) {
	if Default() != Default() {
		t.Fatalf("Default returned distinct instances")
	}
}
