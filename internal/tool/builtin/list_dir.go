package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	toolcore "github.com/researchcli/research/internal/tool"
)

func init() {
	toolcore.RegisterBuiltin("list_dir", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &ListDirTool{workdir: options.Workdir}, nil
	})
}

// ListDirTool lists the entries of a directory.
type ListDirTool struct {
	workdir string
}

func (t *ListDirTool) Name() string {
	return "list_dir"
}

func (t *ListDirTool) Description() string {
	return "List the entries of a directory."
}

func (t *ListDirTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"path": map[string]interface{}{
				"type":        "string",
				"description": "Directory path, absolute or relative to the working directory. Defaults to the working directory.",
			},
		},
	}
}

func (t *ListDirTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Path string `json:"path"`
	}
	if len(input) > 0 {
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("invalid input: %w", err)
		}
	}
	if args.Path == "" {
		args.Path = "."
	}

	path, err := resolvePath(t.workdir, args.Path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("read directory: %w", err)
	}

	type entry struct {
		Name string `json:"name"`
		Dir  bool   `json:"dir"`
		Size int64  `json:"size,omitempty"`
	}
	out := make([]entry, 0, len(entries))
	for _, e := range entries {
		item := entry{Name: e.Name(), Dir: e.IsDir()}
		if info, err := e.Info(); err == nil && !e.IsDir() {
			item.Size = info.Size()
		}
		out = append(out, item)
	}

	return json.Marshal(map[string]any{
		"path":    path,
		"entries": out,
	})
}
