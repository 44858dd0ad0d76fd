package patch

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/rewind/internal/tree"
)

// LineKind distinguishes the three unified diff body line types.
type LineKind int

const (
	// Context lines must match the target and are kept.
	Context LineKind = iota
	// Add lines are inserted into the target.
	Add
	// Del lines must match the target and are removed.
	Del
)

// Line is one body line of a hunk. NoEOL marks a line followed by the
// "\ No newline at end of file" indicator.
type Line struct {
	Kind  LineKind
	Text  string
	NoEOL bool
}

// Hunk is one @@ block of a unified diff. Counts come from the header
// and are informational; application trusts the body lines.
type Hunk struct {
	OldStart, OldCount int
	NewStart, NewCount int
	Lines              []Line
}

// Parse reads unified diff text into hunks. Text before the first @@
// header (---, +++, diff, index lines) is ignored. Body lines must
// start with ' ', '+', '-' or '\'; an empty body line counts as empty
// context, matching what most diff producers emit.
func Parse(text string) ([]Hunk, error) {
	lines := strings.Split(text, "\n")
	// Final split artifact of trailing newline.
	if len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}

	var hunks []Hunk
	var cur *Hunk
	for _, line := range lines {
		if strings.HasPrefix(line, "@@") {
			h, err := parseHunkHeader(line)
			if err != nil {
				return nil, &ApplyError{Code: ErrCodeParseFailed, Message: err.Error()}
			}
			hunks = append(hunks, h)
			cur = &hunks[len(hunks)-1]
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case line == "":
			cur.Lines = append(cur.Lines, Line{Kind: Context, Text: ""})
		case line[0] == ' ':
			cur.Lines = append(cur.Lines, Line{Kind: Context, Text: line[1:]})
		case line[0] == '+':
			cur.Lines = append(cur.Lines, Line{Kind: Add, Text: line[1:]})
		case line[0] == '-':
			cur.Lines = append(cur.Lines, Line{Kind: Del, Text: line[1:]})
		case line[0] == '\\':
			if len(cur.Lines) == 0 {
				return nil, &ApplyError{
					Code:    ErrCodeParseFailed,
					Hunk:    len(hunks),
					Message: "no-newline marker before any hunk line",
				}
			}
			cur.Lines[len(cur.Lines)-1].NoEOL = true
		default:
			return nil, &ApplyError{
				Code:    ErrCodeParseFailed,
				Hunk:    len(hunks),
				Message: fmt.Sprintf("unrecognized hunk line %q", line),
			}
		}
	}
	return hunks, nil
}

// parseHunkHeader parses "@@ -l[,s] +l[,s] @@[ section]".
func parseHunkHeader(line string) (Hunk, error) {
	fields := strings.Fields(line)
	if len(fields) < 4 || fields[0] != "@@" || fields[3] != "@@" ||
		!strings.HasPrefix(fields[1], "-") || !strings.HasPrefix(fields[2], "+") {
		return Hunk{}, fmt.Errorf("malformed hunk header %q", line)
	}

	oldStart, oldCount, err := parseRange(fields[1][1:])
	if err != nil {
		return Hunk{}, fmt.Errorf("malformed hunk header %q: %v", line, err)
	}
	newStart, newCount, err := parseRange(fields[2][1:])
	if err != nil {
		return Hunk{}, fmt.Errorf("malformed hunk header %q: %v", line, err)
	}
	return Hunk{OldStart: oldStart, OldCount: oldCount, NewStart: newStart, NewCount: newCount}, nil
}

// parseRange parses "l,s" or "l" (count defaults to 1).
func parseRange(s string) (start, count int, err error) {
	count = 1
	if i := strings.IndexByte(s, ','); i >= 0 {
		if count, err = strconv.Atoi(s[i+1:]); err != nil {
			return 0, 0, err
		}
		s = s[:i]
	}
	if start, err = strconv.Atoi(s); err != nil {
		return 0, 0, err
	}
	return start, count, nil
}

// Apply parses patchText and applies it to filePath in t, recording
// modifiedAt on the written file. A patch consisting only of added
// lines creates the file when it does not exist; any other patch
// against a missing file fails with TARGET_MISSING.
func Apply(t *tree.Tree, filePath, patchText string, modifiedAt int64) error {
	hunks, err := Parse(patchText)
	if err != nil {
		if ae, ok := err.(*ApplyError); ok {
			ae.Path = filePath
		}
		return err
	}
	if len(hunks) == 0 {
		return &ApplyError{Path: filePath, Code: ErrCodeEmptyPatch, Message: "patch contains no hunks"}
	}

	content, rerr := t.ReadFile(filePath)
	switch {
	case rerr == nil:
		// Patch existing content below.
	case tree.IsNotFound(rerr):
		if !pureAddition(hunks) {
			return &ApplyError{
				Path:    filePath,
				Code:    ErrCodeTargetMissing,
				Message: "target file does not exist and patch is not a pure addition",
			}
		}
		created, trailing := buildAddition(hunks)
		return write(t, filePath, joinLines(created, trailing), modifiedAt)
	default:
		return &ApplyError{Path: filePath, Code: ErrCodeTargetInvalid, Message: rerr.Error()}
	}

	srcLines, srcTrailing := splitLines(content)
	out := srcLines
	trailing := srcTrailing
	offset := 0
	for i, h := range hunks {
		var atEOF bool
		var aerr *ApplyError
		out, offset, atEOF, aerr = applyHunk(out, h, offset)
		if aerr != nil {
			aerr.Path = filePath
			aerr.Hunk = i + 1
			return aerr
		}
		if atEOF {
			trailing = hunkTrailing(h, trailing)
		}
	}
	return write(t, filePath, joinLines(out, trailing), modifiedAt)
}

// applyHunk applies one hunk at its stated position, strict match.
// atEOF reports whether the hunk's last touched line is the end of the
// resulting file, which decides trailing newline ownership.
func applyHunk(src []string, h Hunk, offset int) (out []string, newOffset int, atEOF bool, aerr *ApplyError) {
	// Header positions are 1-based. A zero old count marks an insertion
	// hunk whose start is the line after which to insert.
	start := h.OldStart - 1 + offset
	if h.OldCount == 0 {
		start = h.OldStart + offset
	}
	if start < 0 || start > len(src) {
		return nil, 0, false, &ApplyError{
			Code:    ErrCodeContextMismatch,
			Message: fmt.Sprintf("hunk position %d outside file of %d lines", start+1, len(src)),
		}
	}

	out = append(out, src[:start]...)
	cursor := start
	delta := 0
	for _, ln := range h.Lines {
		switch ln.Kind {
		case Context:
			if cursor >= len(src) || src[cursor] != ln.Text {
				return nil, 0, false, mismatch(src, cursor, ln.Text, "context")
			}
			out = append(out, src[cursor])
			cursor++
		case Del:
			if cursor >= len(src) || src[cursor] != ln.Text {
				return nil, 0, false, mismatch(src, cursor, ln.Text, "deletion")
			}
			cursor++
			delta--
		case Add:
			out = append(out, ln.Text)
			delta++
		}
	}
	atEOF = cursor == len(src)
	out = append(out, src[cursor:]...)
	return out, offset + delta, atEOF, nil
}

func mismatch(src []string, cursor int, want, kind string) *ApplyError {
	got := "<end of file>"
	if cursor < len(src) {
		got = strconv.Quote(src[cursor])
	}
	return &ApplyError{
		Code:    ErrCodeContextMismatch,
		Message: fmt.Sprintf("%s line %q does not match %s at line %d", kind, want, got, cursor+1),
	}
}

// hunkTrailing decides the trailing newline when a hunk rewrote the
// end of the file. The last kept line's NoEOL marker wins; absent any
// kept line the source's state stands.
func hunkTrailing(h Hunk, srcTrailing bool) bool {
	for i := len(h.Lines) - 1; i >= 0; i-- {
		if h.Lines[i].Kind == Del {
			continue
		}
		return !h.Lines[i].NoEOL
	}
	return srcTrailing
}

func pureAddition(hunks []Hunk) bool {
	for _, h := range hunks {
		for _, ln := range h.Lines {
			if ln.Kind != Add {
				return false
			}
		}
	}
	return true
}

// buildAddition collects added lines for file creation.
func buildAddition(hunks []Hunk) (lines []string, trailing bool) {
	trailing = true
	for _, h := range hunks {
		for _, ln := range h.Lines {
			lines = append(lines, ln.Text)
			trailing = !ln.NoEOL
		}
	}
	return lines, trailing
}

// splitLines breaks content into lines, tracking whether it ended with
// a newline. "a\nb\n" yields (["a","b"], true); "" yields (nil, false).
func splitLines(content string) ([]string, bool) {
	if content == "" {
		return nil, false
	}
	trailing := strings.HasSuffix(content, "\n")
	if trailing {
		content = content[:len(content)-1]
	}
	return strings.Split(content, "\n"), trailing
}

func joinLines(lines []string, trailing bool) string {
	if len(lines) == 0 {
		return ""
	}
	joined := strings.Join(lines, "\n")
	if trailing {
		joined += "\n"
	}
	return joined
}

func write(t *tree.Tree, filePath, content string, modifiedAt int64) error {
	if err := t.WriteFile(filePath, content, modifiedAt); err != nil {
		return &ApplyError{Path: filePath, Code: ErrCodeTargetInvalid, Message: err.Error()}
	}
	return nil
}
