package decision

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// BaselineResult is the result envelope a baseline read produces: text
// blocks, occasionally an image, optional truncation.
type BaselineResult struct {
	Text      string
	IsImage   bool
	Truncated bool
}

// Baseline is the host's unmodified read implementation. The decision
// engine delegates to it at step 2 and falls back to it on any
// uncertainty; this spec treats it as an external collaborator
// (spec.md §1 OUT OF SCOPE: "the underlying baseline read
// implementation"). DefaultBaseline is a plain-file reference
// implementation good enough to run standalone and drive tests.
type Baseline interface {
	Read(ctx context.Context, path string, offset, limit *int) (BaselineResult, error)
}

// sizeLimitedBaseline is an optional capability a Baseline can
// implement: a byte limit its own output gets truncated at. Step 12
// of the decision algorithm applies the same limit to the diff
// payload, falling back to baseline content if the diff would have
// been truncated too. A Baseline that doesn't implement it is treated
// as unlimited.
type sizeLimitedBaseline interface {
	MaxTextBytes() int
}

// DefaultBaseline reads plain UTF-8 text files from the local
// filesystem, slicing by 1-based inclusive line offset/limit.
type DefaultBaseline struct {
	// MaxBytes truncates output beyond this size; 0 means no limit.
	MaxBytes int
}

// MaxTextBytes reports the byte limit Read applies to its own output,
// so the decision engine can bound the diff payload (step 12) by the
// same limit. Satisfies sizeLimitedBaseline.
func (b DefaultBaseline) MaxTextBytes() int {
	return b.MaxBytes
}

func (b DefaultBaseline) Read(ctx context.Context, path string, offset, limit *int) (BaselineResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return BaselineResult{}, err
	}
	text := string(data)
	lines := splitLines(text)

	start := 1
	if offset != nil {
		start = *offset
	}
	if start > len(lines) {
		return BaselineResult{}, errValidation(fmt.Sprintf("offset %d beyond end of file (%d lines)", start, len(lines)))
	}
	end := len(lines)
	if limit != nil {
		end = start + *limit - 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start < 1 {
		start = 1
	}

	slice := strings.Join(lines[start-1:end], "\n")
	truncated := false
	if b.MaxBytes > 0 && len(slice) > b.MaxBytes {
		slice = slice[:b.MaxBytes]
		truncated = true
	}
	return BaselineResult{Text: slice, Truncated: truncated}, nil
}

// splitLines splits text into lines the way line-oriented tools count
// them: a single trailing newline does not produce an extra empty
// line. An empty file is one empty line, matching spec.md's baseline
// line-numbering convention.
func splitLines(text string) []string {
	if text == "" {
		return []string{""}
	}
	lines := strings.Split(text, "\n")
	if n := len(lines); n > 1 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	return lines
}
