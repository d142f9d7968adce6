// Package fence turns a chunked text stream into line-terminated tokens and
// classifies fence-tag grammar into edit instructions.
package fence

import "strings"

// Marker is the fence delimiter recognized at the start of a line.
const Marker = "```"

// LineLexer 把任意切分的文本片段重组为完整行。
// 片段可能在行中间甚至 fence 标记中间被切开，因此任何 fence 判定都必须在
// 行重组之后进行。
// LineLexer reassembles arbitrarily split text fragments into complete lines.
// Fragments may be cut mid-line or even mid-fence-marker, so every fence
// decision has to wait until a full line is available.
type LineLexer struct {
	partial strings.Builder
}

// Feed appends a fragment and returns every line completed by it, without
// terminators. The trailing non-terminated piece stays buffered.
func (l *LineLexer) Feed(fragment string) []string {
	if fragment == "" {
		return nil
	}
	if !strings.ContainsRune(fragment, '\n') {
		l.partial.WriteString(fragment)
		return nil
	}

	buffered := l.partial.String() + fragment
	l.partial.Reset()

	parts := strings.Split(buffered, "\n")
	// The final part is either empty (fragment ended on a terminator) or the
	// start of the next line.
	l.partial.WriteString(parts[len(parts)-1])
	return parts[:len(parts)-1]
}

// Flush 流结束时调用：流不保证以换行符结尾，残留内容按已终止的行处理。
// Flush is called at end of stream: streams are not guaranteed to end with a
// terminator, so whatever remains is processed as a terminated line.
func (l *LineLexer) Flush() (string, bool) {
	if l.partial.Len() == 0 {
		return "", false
	}
	line := l.partial.String()
	l.partial.Reset()
	return line, true
}

// IsOpenCandidate reports whether a line can open a fence: it must begin with
// the marker, with no leading whitespace.
func IsOpenCandidate(line string) bool {
	return strings.HasPrefix(line, Marker)
}

// IsCloseMarker reports whether a line closes an open fence: it must be
// exactly the bare marker, nothing else.
func IsCloseMarker(line string) bool {
	return line == Marker
}

// Tag returns the text immediately following the marker on an opening line.
func Tag(line string) string {
	return strings.TrimPrefix(line, Marker)
}
