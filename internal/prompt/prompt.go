package prompt

import (
	"fmt"
	"strings"

	"github.com/dshills/codenotate/internal/language"
	"github.com/dshills/codenotate/pkg/types"
)

// DefaultMaxDependencies caps the dependency names projected into a chunk prompt
const DefaultMaxDependencies = 5

// ContextSystem returns the Phase 1 system prompt
func ContextSystem(policy language.Policy) string {
	return fmt.Sprintf(`You are an expert %s code structure analyzer.
Extract high-level information from source code to provide context for commenting.
DO NOT generate comments or modify code. Only extract metadata.
Respond with a single JSON object matching the requested schema and nothing else.`, policy.Name)
}

// AnnotateSystem returns the Phase 2 system prompt
func AnnotateSystem(policy language.Policy) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You are an expert %s code documentation specialist.\n\n", policy.Name)
	b.WriteString("You analyze code and return ONLY comments, never the code itself.\n")
	b.WriteString("Your only valid output is a JSON object matching the annotation schema.\n\n")
	b.WriteString("Rules:\n")
	fmt.Fprintf(&b, "- Every comment line must start with %q.\n", policy.CommentPrefix)
	b.WriteString("- insert_before_line is 1-based and relative to the section you are given.\n")
	b.WriteString("- Use N+1 to place a comment after the last line of an N-line section.\n")
	if policy.Continuation != "" {
		fmt.Fprintf(&b, "- Never insert a comment after a line ending in %q; that splits one statement.\n", policy.Continuation)
	}
	if !policy.AllowDuplicateInsertionPoints {
		b.WriteString("- Use each insert_before_line at most once; put all lines for one spot in one block.\n")
	}
	b.WriteString("- Do not copy, quote, or rewrite any code line.\n")
	return b.String()
}

// ContextInput is the material for a Phase 1 request
type ContextInput struct {
	Path       string
	Language   string
	Text       string // full text, or a representative sample
	Sampled    bool
	TotalLines int
}

// ContextRequest builds the Phase 1 user prompt
func ContextRequest(in ContextInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze the structure of this %s file.\n\n", in.Language)
	fmt.Fprintf(&b, "File: %s\n", in.Path)
	fmt.Fprintf(&b, "Lines: %d\n", in.TotalLines)
	if in.Sampled {
		b.WriteString("Note: this is a SAMPLE of a large file. Every block signature is listed with its line number;\n")
		b.WriteString("bodies in the middle of the file are omitted. Focus on structure and patterns.\n")
	}
	b.WriteString("\nReturn an object with:\n")
	b.WriteString("1. overview: 2-3 sentences on what this file does\n")
	b.WriteString("2. named_blocks: every named block (procedure, function, class, method) with\n")
	b.WriteString("   name, start_line (counted from 1) and a brief description\n")
	b.WriteString("3. dependencies: tables, files, services, and external names the code relies on\n")
	fmt.Fprintf(&b, "4. total_lines: %d\n\n", in.TotalLines)
	fmt.Fprintf(&b, "Code:\n```%s\n%s\n```\n", in.Language, in.Text)
	return b.String()
}

// ChunkInput is the material for a Phase 2 request
type ChunkInput struct {
	Path            string
	Policy          language.Policy
	Chunk           *types.Chunk
	TotalChunks     int
	Context         *types.FileContext
	Siblings        []string // named blocks of the file; the chunk's own block is left out of the prompt
	NumberLines     bool
	MaxDependencies int
}

// ChunkRequest builds the Phase 2 user prompt for one attempt.
// Attempts after the first carry the issues that rejected the previous one.
func ChunkRequest(in ChunkInput, attempt int, prior []types.Issue) string {
	maxDeps := in.MaxDependencies
	if maxDeps <= 0 {
		maxDeps = DefaultMaxDependencies
	}
	ch := in.Chunk
	lineCount := ch.LineCount()

	var b strings.Builder
	fmt.Fprintf(&b, "Generate comments for this %s code section.\n\n", in.Policy.Name)

	b.WriteString("FILE CONTEXT (for your understanding):\n")
	fmt.Fprintf(&b, "File: %s\n", in.Path)
	if in.Context != nil {
		fmt.Fprintf(&b, "Overview: %s\n", strings.TrimSpace(in.Context.Overview))
		deps := in.Context.TopDependencies(maxDeps)
		if len(deps) == 0 {
			b.WriteString("Dependencies: None\n")
		} else {
			fmt.Fprintf(&b, "Dependencies: %s\n", strings.Join(deps, ", "))
		}
		if blk, ok := in.Context.Block(ch.BlockName()); ok && blk.Description != "" {
			fmt.Fprintf(&b, "This block: %s\n", blk.Description)
		}
	}
	if others := otherBlocks(in.Siblings, ch.BlockName()); len(others) > 0 {
		fmt.Fprintf(&b, "Other blocks in this file: %s\n", strings.Join(others, ", "))
	}

	b.WriteString("\nCODE SECTION:\n")
	kind := ch.BlockKind
	if kind == "" {
		kind = string(ch.Kind)
	}
	fmt.Fprintf(&b, "Type: %s\n", kind)
	fmt.Fprintf(&b, "Name: %s\n", ch.DisplayName())
	if in.TotalChunks > 0 {
		fmt.Fprintf(&b, "Section: %d of %d\n", ch.Index+1, in.TotalChunks)
	}
	fmt.Fprintf(&b, "Lines: %d (file lines %d-%d)\n", lineCount, ch.StartLine+1, ch.EndLine)

	if attempt > 1 && len(prior) > 0 {
		b.WriteString(retrySection(in.Policy, attempt, prior))
	}

	b.WriteString("\nReturn JSON with two fields:\n")
	b.WriteString("1. \"header\": purpose (what THIS section does), key_functions, dependencies used here\n")
	b.WriteString("2. \"inline_comments\": array of {insert_before_line, comment_lines, context}\n")
	fmt.Fprintf(&b, "   insert_before_line must be between 1 and %d.\n", lineCount+1)
	fmt.Fprintf(&b, "   Each comment line starts with %q.\n", in.Policy.CommentPrefix)

	b.WriteString("\nCode section to analyze:\n")
	fmt.Fprintf(&b, "```%s\n", in.Policy.Name)
	if in.NumberLines {
		b.WriteString(NumberLines(ch.Content))
	} else {
		b.WriteString(ch.Content)
	}
	b.WriteString("\n```\n\nReturn ONLY the JSON object. DO NOT return the code itself.\n")
	return b.String()
}

// otherBlocks drops self and repeats from names
func otherBlocks(names []string, self string) []string {
	var out []string
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if strings.EqualFold(n, self) || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

// retrySection explains why the previous attempt was rejected. A content
// violation gets the strongest wording because the backend touched code.
func retrySection(policy language.Policy, attempt int, prior []types.Issue) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\nPREVIOUS ATTEMPT REJECTED (this is attempt %d):\n", attempt)
	for _, is := range prior {
		if is.Severity == types.SeverityInfo {
			continue
		}
		fmt.Fprintf(&b, "- [%s] %s\n", is.Code, is.Message)
	}
	if hasCode(prior, types.IssueContentViolation) || hasCode(prior, types.IssueNotComment) {
		b.WriteString("Your output was AUTOMATICALLY REJECTED because it changed or contained code.\n")
		b.WriteString("Return comment text only. Every line you return is inserted verbatim as a comment.\n")
		fmt.Fprintf(&b, "A line that does not start with %q is not a comment.\n", policy.CommentPrefix)
	}
	if hasCode(prior, types.IssueOutOfRange) || hasCode(prior, types.IssueDuplicatePoint) || hasCode(prior, types.IssueContinuation) {
		b.WriteString("Check every insert_before_line against the line numbers shown below.\n")
	}
	if hasCode(prior, types.IssueInsideLiteral) {
		b.WriteString("Never insert inside a multi-line string or text block; place the comment before the statement that opens it.\n")
	}
	if hasCode(prior, types.IssueSchemaViolation) {
		b.WriteString("The response was not valid JSON for the schema. Use double-quoted keys exactly as named.\n")
	}
	return b.String()
}

func hasCode(issues []types.Issue, code types.IssueCode) bool {
	for _, is := range issues {
		if is.Code == code {
			return true
		}
	}
	return false
}

// NumberLines prefixes each line with its 1-based number so the backend can
// cite exact insertion points.
func NumberLines(content string) string {
	lines := strings.Split(content, "\n")
	width := len(fmt.Sprint(len(lines)))
	var b strings.Builder
	for i, line := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%*d| %s", width, i+1, line)
	}
	return b.String()
}
