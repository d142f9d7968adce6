package fence

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"codestream/internal/change"
)

// lineRangeRe matches a line-range shaped tag: <anything>:<digits>:<digits>
// at the end of the tag.
var lineRangeRe = regexp.MustCompile(`^(.*):(\d+):(\d+)$`)

// operationSuffixes maps the tag's trailing segment to a structural operation.
// Absent suffix means replace.
var operationSuffixes = map[string]change.Operation{
	"before":       change.OpInsertBefore,
	"after":        change.OpInsertAfter,
	"remove":       change.OpDelete,
	"with-comment": change.OpReplaceWithComment,
}

// requiredFormat names the only tag shape the given mode accepts. Mismatched
// tags are rejected with this format in the error instead of being silently
// reinterpreted: the mode was fixed when the session was activated, and
// accepting a different shape would apply the block under the wrong strategy.
func requiredFormat(mode change.EditMode) string {
	switch mode {
	case change.ModeLineNumbers:
		return "```<lang>:<start>:<end>"
	case change.ModeAstPath:
		return "```<lang>:<Seg>-<Seg>[:before|:after|:remove|:with-comment]"
	default:
		return "```<lang>"
	}
}

// Interpret 按当前会话模式解析 opening fence 的标签，产出 FileChange 骨架。
// 解析阶段对文件没有任何副作用；格式错误作为数据记录在返回值上。
// Interpret parses an opening fence's tag under the session's active mode and
// produces a FileChange skeleton. It has no side effects on the file; format
// errors are recorded as data on the returned change.
//
// haveValidComplete reports whether the session already holds a valid
// complete-file change, which caps ModeCompleteFile at one block.
func Interpret(tag string, mode change.EditMode, haveValidComplete bool) *change.FileChange {
	tag = strings.TrimRight(tag, " \t\r")

	if mode == change.ModeCompleteFile && haveValidComplete {
		return change.NewError(mode, "Complete file mode allows only one code block.")
	}

	if tag == "" {
		if mode == change.ModeCompleteFile {
			return &change.FileChange{Mode: mode}
		}
		return change.NewError(mode, fmt.Sprintf("unlabeled code block not allowed in %s mode", mode))
	}

	if !strings.Contains(tag, ":") {
		// Bare language tag.
		if mode == change.ModeCompleteFile {
			return &change.FileChange{Mode: mode}
		}
		return change.NewError(mode, "bare language tags are only allowed in complete_file mode")
	}

	if m := lineRangeRe.FindStringSubmatch(tag); m != nil {
		if mode != change.ModeLineNumbers {
			return change.NewError(mode, fmt.Sprintf(
				"line-range tag %q does not match %s mode; use %s", tag, mode, requiredFormat(mode)))
		}
		start, err := strconv.Atoi(m[2])
		if err != nil {
			return change.NewError(mode, fmt.Sprintf("invalid start line %q", m[2]))
		}
		end, err := strconv.Atoi(m[3])
		if err != nil {
			return change.NewError(mode, fmt.Sprintf("invalid end line %q", m[3]))
		}
		if start < 1 || end < start {
			return change.NewError(mode, fmt.Sprintf(
				"invalid line range %d:%d: start must be >= 1 and end >= start", start, end))
		}
		return &change.FileChange{Mode: mode, StartLine: start, EndLine: end}
	}

	// AST-shaped tag: drop the leading language token, strip an optional
	// operation suffix from the final segment.
	segments := strings.Split(tag, ":")[1:]
	op := change.OpReplace
	if len(segments) > 0 {
		last := strings.ToLower(segments[len(segments)-1])
		if parsed, ok := operationSuffixes[last]; ok {
			op = parsed
			segments = segments[:len(segments)-1]
		}
	}
	if mode != change.ModeAstPath {
		return change.NewError(mode, fmt.Sprintf(
			"structural tag %q does not match %s mode; use %s", tag, mode, requiredFormat(mode)))
	}
	segments = nonEmpty(segments)
	if len(segments) == 0 {
		return change.NewError(mode, "AST path is missing")
	}
	return &change.FileChange{
		Mode:      mode,
		Operation: op,
		AstPath:   strings.Join(segments, change.PathSeparator),
	}
}

func nonEmpty(segments []string) []string {
	out := segments[:0]
	for _, s := range segments {
		if strings.TrimSpace(s) != "" {
			out = append(out, s)
		}
	}
	return out
}
