package session

import (
	"fmt"
	"strings"

	"codestream/internal/change"
)

// buildSummary enumerates each change's target description and outcome, plus
// the file's resulting line count. The text goes back into the conversation
// as a continuation message so the model can self-correct in its next turn.
func (s *Session) buildSummary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Edit results for %s:\n", s.path)
	for _, ch := range s.proc.Pending() {
		fmt.Fprintf(&b, "- %s: %s\n", ch.Describe(), s.outcome(ch))
	}
	fmt.Fprintf(&b, "The file now has %d lines.", s.file.LineCount())
	return b.String()
}

func (s *Session) outcome(ch *change.FileChange) string {
	if ch.State == change.StateApplied {
		return "applied"
	}
	reason := ch.Err
	if reason == "" {
		reason = "not applied"
	}
	// Error strings can embed model output; keep each line inside the
	// summary's token budget.
	return "failed: " + s.tok.Truncate(reason, s.budget)
}
