package language

import "regexp"

// VFP is the Visual FoxPro policy
func VFP() Policy {
	return Policy{
		Name:            "vfp",
		Extensions:      []string{".prg"},
		Encoding:        "latin1",
		LineComment:     regexp.MustCompile(`(?i)^(\*|&&|note(\s|$))`),
		EOLComment:      regexp.MustCompile(`(?i)^(\*|&&|note(\s|$))`),
		TrailingComment: "&&",
		CommentPrefix:   "* ",
		Continuation:    ";",
		TextBlockStart:  regexp.MustCompile(`(?i)^\s*TEXT(\s+(TO|NOSHOW|TEXTMERGE|ADDITIVE|FLAGS|PRETEXT)\b.*)?\s*$`),
		TextBlockEnd:    regexp.MustCompile(`(?i)^\s*ENDTEXT\b`),
		Blocks: []BlockRule{
			{
				Kind:  "class",
				Start: regexp.MustCompile(`(?i)^\s*DEFINE\s+CLASS\s+(?P<name>\w+)`),
				End:   regexp.MustCompile(`(?i)^\s*ENDDEFINE\b`),
			},
			{
				Kind:  "procedure",
				Start: regexp.MustCompile(`(?i)^\s*(?:PROTECTED\s+|HIDDEN\s+)?(?:PROCEDURE|FUNCTION)\s+(?P<name>[\w.]+)`),
				End:   regexp.MustCompile(`(?i)^\s*(?:ENDPROC|ENDFUNC)\b`),
			},
		},
		AllowDuplicateInsertionPoints: false,
		StructuralKeywords: []string{
			"PROCEDURE", "FUNCTION", "ENDPROC", "ENDFUNC",
			"DEFINE CLASS", "ENDDEFINE",
			"IF", "ELSE", "ENDIF",
			"FOR", "ENDFOR", "NEXT",
			"DO WHILE", "ENDDO", "DO CASE", "CASE", "OTHERWISE", "ENDCASE",
			"SCAN", "ENDSCAN", "TRY", "CATCH", "ENDTRY",
			"SELECT", "FROM", "WHERE", "ORDER BY",
			"INSERT", "UPDATE", "DELETE",
			"RETURN", "LOCAL", "PRIVATE", "PUBLIC", "PARAMETERS", "LPARAMETERS",
		},
		CaseInsensitive: true,
	}
}

// CSharp is the C# policy
func CSharp() Policy {
	return Policy{
		Name:              "csharp",
		Extensions:        []string{".cs"},
		LineComment:       regexp.MustCompile(`^(//|\*)`),
		EOLComment:        regexp.MustCompile(`^//`),
		TrailingComment:   "//",
		CommentPrefix:     "// ",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		MultilineStrings: []StringRule{
			{Open: `"""`, Close: `"""`},
			{Open: `@$"`, Close: `"`, Escape: `""`},
			{Open: `@"`, Close: `"`, Escape: `""`},
		},
		Blocks: []BlockRule{
			{
				Kind:  "region",
				Start: regexp.MustCompile(`^\s*#region\b\s*(?P<name>.*)$`),
				End:   regexp.MustCompile(`^\s*#endregion\b`),
			},
			{
				Kind:   "type",
				Start:  regexp.MustCompile(`^\s*(?:\[[^\]]*\]\s*)*(?:(?:public|private|internal|protected|static|abstract|sealed|partial|readonly|ref|unsafe|new|file)\s+)*(?:class|interface|struct|enum|record)\s+(?P<name>\w+)`),
				Braces: true,
			},
			{
				Kind:   "method",
				Start:  regexp.MustCompile(`^\s*(?:\[[^\]]*\]\s*)*(?:(?:public|private|internal|protected|static|virtual|override|abstract|async|sealed|extern|unsafe|new|partial|readonly)\s+)+[\w<>\[\],.?]+(?:\s*<[^>]*>)?\s+(?P<name>\w+)\s*(?:<[^>]*>)?\s*\(`),
				Braces: true,
			},
			{
				Kind:   "constructor",
				Start:  regexp.MustCompile(`^\s*(?:public|private|internal|protected|static)\s+(?P<name>\w+)\s*\(`),
				Braces: true,
			},
		},
		// A /// doc comment and a plain comment may legitimately share a line.
		AllowDuplicateInsertionPoints: true,
		StructuralKeywords: []string{
			"class", "interface", "struct", "enum", "namespace", "using",
			"if", "else", "for", "foreach", "while", "do", "switch", "case",
			"break", "continue", "return", "try", "catch", "finally", "throw",
			"new", "await", "yield",
			"select", "from", "where", "orderby",
		},
	}
}

// Go is the Go policy
func Go() Policy {
	return Policy{
		Name:              "go",
		Extensions:        []string{".go"},
		LineComment:       regexp.MustCompile(`^//`),
		EOLComment:        regexp.MustCompile(`^//`),
		TrailingComment:   "//",
		CommentPrefix:     "// ",
		BlockCommentOpen:  "/*",
		BlockCommentClose: "*/",
		MultilineStrings:  []StringRule{{Open: "`", Close: "`"}},
		Blocks: []BlockRule{
			{
				Kind:   "func",
				Start:  regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(?P<name>\w+)`),
				Braces: true,
			},
			{
				Kind:   "type",
				Start:  regexp.MustCompile(`^type\s+(?P<name>\w+)(?:\[[^\]]*\])?\s+(?:struct|interface)\b`),
				Braces: true,
			},
		},
		AllowDuplicateInsertionPoints: false,
		StructuralKeywords: []string{
			"package", "import", "func", "type", "struct", "interface",
			"if", "else", "for", "range", "switch", "case", "default",
			"select", "go", "defer", "return", "break", "continue",
			"var", "const", "chan", "map",
		},
	}
}
