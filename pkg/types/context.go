package types

import "strings"

// NamedBlock is one entry of the file-level block index
type NamedBlock struct {
	Name        string `json:"name"`
	StartLine   int    `json:"start_line"` // 1-based
	Description string `json:"description"`
}

// FileContext is the whole-file summary produced once per file and shared
// read-only by every chunk annotation request for that file.
type FileContext struct {
	Overview     string       `json:"overview"`
	NamedBlocks  []NamedBlock `json:"named_blocks"`
	Dependencies []string     `json:"dependencies"`
	TotalLines   int          `json:"total_lines"`
}

// Clone returns a deep copy so callers can't mutate shared state
func (fc *FileContext) Clone() *FileContext {
	if fc == nil {
		return nil
	}
	out := &FileContext{
		Overview:   fc.Overview,
		TotalLines: fc.TotalLines,
	}
	out.NamedBlocks = append([]NamedBlock(nil), fc.NamedBlocks...)
	out.Dependencies = append([]string(nil), fc.Dependencies...)
	return out
}

// TopDependencies returns at most n dependency names
func (fc *FileContext) TopDependencies(n int) []string {
	if fc == nil || n <= 0 {
		return nil
	}
	if len(fc.Dependencies) <= n {
		return fc.Dependencies
	}
	return fc.Dependencies[:n]
}

// Block finds a named block by case-insensitive name
func (fc *FileContext) Block(name string) (NamedBlock, bool) {
	if fc == nil {
		return NamedBlock{}, false
	}
	for _, b := range fc.NamedBlocks {
		if strings.EqualFold(b.Name, name) {
			return b, true
		}
	}
	return NamedBlock{}, false
}

// Validate checks the semantic minimum a context needs to be useful
func (fc *FileContext) Validate() error {
	if strings.TrimSpace(fc.Overview) == "" {
		return ErrEmptyOverview
	}
	for _, b := range fc.NamedBlocks {
		if strings.TrimSpace(b.Name) == "" {
			return ErrUnnamedBlock
		}
	}
	return nil
}
