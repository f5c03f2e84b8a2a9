package types

// HeaderInfo is the per-chunk summary returned alongside inline comments
type HeaderInfo struct {
	Purpose      string   `json:"purpose"`
	KeyFunctions []string `json:"key_functions"`
	Dependencies []string `json:"dependencies"`
}

// CommentBlock is a group of comment lines to insert before a chunk line.
// InsertBeforeLine is 1-based and relative to the chunk; lineCount+1 appends.
type CommentBlock struct {
	InsertBeforeLine int      `json:"insert_before_line"`
	Lines            []string `json:"comment_lines"`
	Note             string   `json:"context,omitempty"`
}

// AnnotationSet is the backend output for one chunk. It never carries code.
type AnnotationSet struct {
	Header   HeaderInfo     `json:"header"`
	Comments []CommentBlock `json:"inline_comments"`
}

// Clone returns a deep copy of the set
func (a *AnnotationSet) Clone() *AnnotationSet {
	if a == nil {
		return nil
	}
	out := &AnnotationSet{
		Header: HeaderInfo{
			Purpose:      a.Header.Purpose,
			KeyFunctions: append([]string(nil), a.Header.KeyFunctions...),
			Dependencies: append([]string(nil), a.Header.Dependencies...),
		},
		Comments: make([]CommentBlock, len(a.Comments)),
	}
	for i, c := range a.Comments {
		out.Comments[i] = CommentBlock{
			InsertBeforeLine: c.InsertBeforeLine,
			Lines:            append([]string(nil), c.Lines...),
			Note:             c.Note,
		}
	}
	return out
}

// CommentLineCount returns the total number of comment lines in the set
func (a *AnnotationSet) CommentLineCount() int {
	if a == nil {
		return 0
	}
	n := 0
	for _, c := range a.Comments {
		n += len(c.Lines)
	}
	return n
}

// Text returns every piece of prose in the set, header included
func (a *AnnotationSet) Text() []string {
	if a == nil {
		return nil
	}
	out := []string{a.Header.Purpose}
	out = append(out, a.Header.KeyFunctions...)
	for _, c := range a.Comments {
		out = append(out, c.Lines...)
	}
	return out
}
