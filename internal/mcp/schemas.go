package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"
)

func languageProperty() map[string]interface{} {
	return map[string]interface{}{
		"type":        "string",
		"description": "Language policy (vfp, csharp, go). Defaults to the configured language, then the file extension",
	}
}

// annotateFileTool returns the tool definition for annotate_file
func annotateFileTool() mcp.Tool {
	return mcp.Tool{
		Name:        "annotate_file",
		Description: "Add explanatory comments to one source file without changing any code",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source file",
				},
				"language": languageProperty(),
				"write": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, write the annotated file through the configured sink instead of returning it",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// annotateDirectoryTool returns the tool definition for annotate_directory
func annotateDirectoryTool() mcp.Tool {
	return mcp.Tool{
		Name:        "annotate_directory",
		Description: "Annotate every supported source file under a directory and record the outcomes",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the directory to process",
				},
				"language": languageProperty(),
				"dry_run": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, only plan chunks; no backend calls and no writes",
					"default":     false,
				},
				"max_files": map[string]interface{}{
					"type":        "integer",
					"description": "Maximum number of files to process (0 for no limit)",
					"default":     0,
					"minimum":     0,
				},
				"resume": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, skip files that already succeeded with identical content",
					"default":     true,
				},
				"force": map[string]interface{}{
					"type":        "boolean",
					"description": "If true, process files whose annotated output already exists",
					"default":     false,
				},
			},
			Required: []string{"path"},
		},
	}
}

// previewChunksTool returns the tool definition for preview_chunks
func previewChunksTool() mcp.Tool {
	return mcp.Tool{
		Name:        "preview_chunks",
		Description: "Show how a file would be split into chunks, without calling the backend",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the source file",
				},
				"language": languageProperty(),
			},
			Required: []string{"path"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        "get_status",
		Description: "Report ledger statistics, or the files of one run",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"run_id": map[string]interface{}{
					"type":        "string",
					"description": "Run to describe in detail; omit for a ledger summary",
				},
				"limit": map[string]interface{}{
					"type":        "integer",
					"description": "Number of recent runs to list (1-100)",
					"default":     5,
					"minimum":     1,
					"maximum":     100,
				},
			},
		},
	}
}
