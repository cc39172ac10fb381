package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/researchcli/research/internal/pathutil"
	toolcore "github.com/researchcli/research/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("read_file", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ReadFileTool{workdir: options.Workdir, maxBytes: options.ReadFileMaxBytes}, nil
	})
}

// ReadFileTool reads a text file from disk, truncating past the byte cap.
type ReadFileTool struct {
	workdir  string
	maxBytes int64
}

func (t *ReadFileTool) Name() string {
	return "read_file"
}

func (t *ReadFileTool) Description() string {
	return "Read the contents of a file. Large files are truncated."
}

func (t *ReadFileTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Path to the file, absolute or relative to the working directory",
			},
		},
		"required": []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path string `json:"path"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if args.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	path, err := resolvePath(t.workdir, args.Path)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	limit := t.maxBytes
	if limit <= 0 {
		limit = toolcore.DefaultReadFileMaxBytes
	}

	// Read one byte past the cap to detect truncation without statting.
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}

	truncated := int64(len(data)) > limit
	if truncated {
		data = data[:limit]
	}
	if !utf8.Valid(data) {
		return nil, fmt.Errorf("file is not valid UTF-8: %s", args.Path)
	}

	return json.Marshal(map[string]any{
		"path":      path,
		"content":   string(data),
		"truncated": truncated,
	})
}

// resolvePath expands the input and anchors relative paths at the workdir.
func resolvePath(workdir, in string) (string, error) {
	expanded, err := pathutil.Expand(in)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(expanded) {
		return filepath.Clean(expanded), nil
	}
	if workdir == "" {
		workdir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("resolve working directory: %w", err)
		}
	}
	return filepath.Clean(filepath.Join(workdir, expanded)), nil
}
