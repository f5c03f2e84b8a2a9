package chunker

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/pkg/types"
)

const (
	// DefaultWholeFileThreshold keeps files below this many lines in one chunk
	DefaultWholeFileThreshold = 100

	// WholeFileName names the single chunk of an unsplit file
	WholeFileName = "whole_file"

	// TopLevelName names text outside any block
	TopLevelName = "top_level"
)

// Tier maps files with fewer than Below lines to a target chunk size.
// Below == 0 means unbounded.
type Tier struct {
	Below int `yaml:"below"`
	Size  int `yaml:"size"`
}

// DefaultTiers returns the standard size tiers
func DefaultTiers() []Tier {
	return []Tier{
		{Below: 500, Size: 100},
		{Below: 2000, Size: 150},
		{Below: 0, Size: 200},
	}
}

// Config contains adaptive sizing configuration
type Config struct {
	WholeFileThreshold int    // Files with fewer lines are not chunked (default: 100)
	Tiers              []Tier // Ascending by Below; last tier should be unbounded
}

// Chunker splits source text into ordered, bounded chunks aligned with blocks
type Chunker struct {
	policy language.Policy
	cfg    Config
	logger *zap.Logger
}

// New creates a new Chunker for a language policy
func New(policy language.Policy, cfg Config, logger *zap.Logger) *Chunker {
	if cfg.WholeFileThreshold <= 0 {
		cfg.WholeFileThreshold = DefaultWholeFileThreshold
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = DefaultTiers()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chunker{policy: policy, cfg: cfg, logger: logger}
}

// TargetSize returns the chunk size for a file of totalLines lines
func (c *Chunker) TargetSize(totalLines int) int {
	for _, t := range c.cfg.Tiers {
		if t.Below == 0 || totalLines < t.Below {
			return t.Size
		}
	}
	return c.cfg.Tiers[len(c.cfg.Tiers)-1].Size
}

// Chunk splits text into chunks covering every line exactly once.
// It never fails; unbalanced blocks degrade to coarser chunks and are
// reported as boundary-ambiguity issues.
func (c *Chunker) Chunk(text string) ([]*types.Chunk, []types.Issue) {
	lines := strings.Split(text, "\n")
	total := len(lines)

	if total < c.cfg.WholeFileThreshold {
		chunk := c.newChunk(lines, 0, total, types.ChunkTopLevel, WholeFileName, "", 0)
		return []*types.Chunk{chunk}, nil
	}

	target := c.TargetSize(total)
	scan := FindBlocks(lines, c.policy)
	issues := c.ambiguities(scan)

	literal := c.policy.LiteralOpen(lines)

	var chunks []*types.Chunk
	emit := func(start, end int, kind types.ChunkKind, name, blockKind string) {
		if end <= start {
			return
		}
		if end-start <= target {
			chunks = append(chunks, c.newChunk(lines, start, end, kind, name, blockKind, 0))
			return
		}
		part := 1
		for s := start; s < end; {
			e := s + target
			if e > end {
				e = end
			}
			// Never cut a continued statement or an open literal
			for e < end && (c.policy.EndsWithContinuation(lines[e-1]) || literal[e-1]) {
				e++
			}
			partName := fmt.Sprintf("%s_part%d", name, part)
			chunks = append(chunks, c.newChunk(lines, s, e, kind, partName, blockKind, part))
			part++
			s = e
		}
	}

	cursor := 0
	for _, b := range scan.TopLevel() {
		if b.StartLine < cursor {
			continue
		}
		emit(cursor, b.StartLine, types.ChunkTopLevel, TopLevelName, "")
		emit(b.StartLine, b.EndLine+1, types.ChunkNamedBlock, b.Name, b.Kind)
		cursor = b.EndLine + 1
	}
	emit(cursor, total, types.ChunkTopLevel, TopLevelName, "")

	for i, ch := range chunks {
		ch.Index = i
	}

	c.logger.Debug("chunk plan",
		zap.String("language", c.policy.Name),
		zap.Int("total_lines", total),
		zap.Int("target_size", target),
		zap.Int("blocks", len(scan.Blocks)),
		zap.Int("chunks", len(chunks)))

	return chunks, issues
}

// newChunk creates a chunk over lines[start:end]
func (c *Chunker) newChunk(lines []string, start, end int, kind types.ChunkKind, name, blockKind string, part int) *types.Chunk {
	chunk := &types.Chunk{
		Name:      name,
		Kind:      kind,
		BlockKind: blockKind,
		Part:      part,
		Content:   strings.Join(lines[start:end], "\n"),
		StartLine: start,
		EndLine:   end,
	}
	chunk.ComputeContentHash()
	chunk.ComputeTokenCount()
	return chunk
}

// ambiguities converts scan anomalies into warnings
func (c *Chunker) ambiguities(scan Scan) []types.Issue {
	var issues []types.Issue
	for _, b := range scan.Blocks {
		switch {
		case b.Unterminated:
			issues = append(issues, types.NewIssue(types.LayerChunker, types.IssueBoundaryAmbiguity, types.SeverityWarning,
				"%s %q opened at line %d has no terminator; extended to end of file", b.Kind, b.Name, b.StartLine+1))
		case b.Implicit:
			issues = append(issues, types.NewIssue(types.LayerChunker, types.IssueBoundaryAmbiguity, types.SeverityWarning,
				"%s %q opened at line %d was closed by its enclosing block at line %d", b.Kind, b.Name, b.StartLine+1, b.EndLine+1))
		}
	}
	for _, s := range scan.Strays {
		issues = append(issues, types.NewIssue(types.LayerChunker, types.IssueBoundaryAmbiguity, types.SeverityWarning,
			"terminator %q at line %d matches no open block", s.Text, s.Line+1))
	}
	for _, is := range issues {
		c.logger.Warn("boundary ambiguity", zap.String("language", c.policy.Name), zap.String("detail", is.Message))
	}
	return issues
}
