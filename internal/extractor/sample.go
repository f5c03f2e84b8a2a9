package extractor

import (
	"fmt"
	"strings"

	"github.com/dshills/codenotate/internal/chunker"
	"github.com/dshills/codenotate/internal/language"
)

// BuildSample returns the text sent to the backend for Phase 1 and whether it
// was sampled. Files at or below SampleThreshold lines are returned whole.
func BuildSample(lines []string, policy language.Policy, cfg Config) (string, bool) {
	cfg = cfg.withDefaults()
	total := len(lines)
	if total <= cfg.SampleThreshold || cfg.HeadLines+cfg.TailLines >= total {
		return strings.Join(lines, "\n"), false
	}

	head := lines[:cfg.HeadLines]
	tailStart := total - cfg.TailLines
	tail := lines[tailStart:]
	scan := chunker.FindBlocks(lines, policy)

	out := make([]string, 0, len(head)+len(tail)+len(scan.Blocks)+6)
	out = append(out, policy.Comment(fmt.Sprintf("SAMPLE: %d of %d lines shown", len(head)+len(tail), total)))
	out = append(out, head...)
	out = append(out, "", policy.Comment(fmt.Sprintf("BLOCK SIGNATURES (%d)", len(scan.Blocks))))
	for _, b := range scan.Blocks {
		out = append(out, policy.Comment(fmt.Sprintf("Line %d: %s", b.StartLine+1, strings.TrimSpace(b.Signature))))
	}
	out = append(out, "", policy.Comment(fmt.Sprintf("... lines %d-%d omitted ...", cfg.HeadLines+1, tailStart)), "")
	out = append(out, tail...)
	return strings.Join(out, "\n"), true
}
