package types

import (
	"crypto/sha256"
	"errors"
	"fmt"
	"strings"
)

// ChunkKind represents how a chunk relates to the file's block structure
type ChunkKind string

const (
	ChunkTopLevel   ChunkKind = "top-level"
	ChunkNamedBlock ChunkKind = "named-block"
)

// Chunk is a contiguous line range of a source file processed as one annotation unit.
// Line numbers are zero-based; EndLine is exclusive.
type Chunk struct {
	// Identification
	Index     int
	Name      string
	Kind      ChunkKind
	BlockKind string // Rule that opened the block ("procedure", "class", ...); empty for top-level
	Part      int    // 1-based sub-chunk number, 0 when the range was not split

	// Content
	Content     string
	ContentHash [32]byte // SHA-256 of Content
	TokenCount  int

	// Location
	StartLine int
	EndLine   int
}

// LineCount returns the number of lines held by the chunk
func (c *Chunk) LineCount() int {
	return c.EndLine - c.StartLine
}

// Lines splits the chunk content into its original lines
func (c *Chunk) Lines() []string {
	return strings.Split(c.Content, "\n")
}

// DisplayName returns a label suitable for logs and prompts
func (c *Chunk) DisplayName() string {
	if c.Name == "" {
		return string(c.Kind)
	}
	return c.Name
}

// BlockName returns the name of the block the chunk belongs to, without the
// "_partN" suffix sub-chunks carry
func (c *Chunk) BlockName() string {
	name := c.DisplayName()
	if c.Part > 0 {
		name = strings.TrimSuffix(name, fmt.Sprintf("_part%d", c.Part))
	}
	return name
}

// ValidateRange checks the chunk's line range against its content
func (c *Chunk) ValidateRange() error {
	if c.StartLine < 0 {
		return ErrInvalidLineRange
	}
	if c.EndLine <= c.StartLine {
		return ErrInvalidLineRange
	}
	if len(c.Lines()) != c.LineCount() {
		return errors.New("chunk content does not match its line range")
	}
	return nil
}

// ValidateKind checks if the chunk kind is valid
func (c *Chunk) ValidateKind() error {
	switch c.Kind {
	case ChunkTopLevel, ChunkNamedBlock:
		return nil
	default:
		return errors.New("invalid chunk kind")
	}
}

// Validate performs comprehensive validation of the chunk
func (c *Chunk) Validate() error {
	if err := c.ValidateRange(); err != nil {
		return err
	}

	if err := c.ValidateKind(); err != nil {
		return err
	}

	if c.Kind == ChunkNamedBlock && c.Name == "" {
		return errors.New("named block requires a name")
	}

	var zeroHash [32]byte
	if c.ContentHash == zeroHash {
		return errors.New("content hash must be computed")
	}

	return nil
}

// ComputeTokenCount estimates the number of tokens in the chunk
// Uses a simple heuristic: characters / 4
func (c *Chunk) ComputeTokenCount() int {
	c.TokenCount = len(c.Content) / 4
	return c.TokenCount
}

// ComputeContentHash computes the SHA-256 hash of the chunk content
func (c *Chunk) ComputeContentHash() {
	c.ContentHash = sha256.Sum256([]byte(c.Content))
}
