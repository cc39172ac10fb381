package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/bmatcuk/doublestar/v4"

	toolcore "github.com/researchcli/research/internal/tool"
)

// globMaxMatches bounds the result so one broad pattern cannot flood the
// model context.
const globMaxMatches = 500

func init() {
	toolcore.RegisterBuiltin("glob", func(options toolcore.BuiltinOptions) (toolcore.Tool, error) {
		return &GlobTool{workdir: options.Workdir}, nil
	})
}

// GlobTool matches files under the working directory with doublestar
// patterns like **/*.go.
type GlobTool struct {
	workdir string
}

func (t *GlobTool) Name() string {
	return "glob"
}

func (t *GlobTool) Description() string {
	return "Find files matching a glob pattern, with ** for recursive matching."
}

func (t *GlobTool) Parameters() map[string]interface{} {
	return map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"pattern": map[string]interface{}{
				"type":        "string",
				"description": "Glob pattern, e.g. internal/**/*.go",
			},
			"root": map[string]interface{}{
				"type":        "string",
				"description": "Directory to match under. Defaults to the working directory.",
			},
		},
		"required": []string{"pattern"},
	}
}

func (t *GlobTool) Execute(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var args struct {
		Pattern string `json:"pattern"`
		Root    string `json:"root"`
	}
	if err := json.Unmarshal(input, &args); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if args.Pattern == "" {
		return nil, fmt.Errorf("pattern is required")
	}
	if !doublestar.ValidatePattern(args.Pattern) {
		return nil, fmt.Errorf("invalid glob pattern: %s", args.Pattern)
	}

	root := args.Root
	if root == "" {
		root = "."
	}
	rootPath, err := resolvePath(t.workdir, root)
	if err != nil {
		return nil, err
	}

	matches, err := doublestar.Glob(os.DirFS(rootPath), args.Pattern, doublestar.WithFilesOnly())
	if err != nil {
		if err == fs.ErrNotExist {
			matches = nil
		} else {
			return nil, fmt.Errorf("glob: %w", err)
		}
	}

	sort.Strings(matches)
	truncated := len(matches) > globMaxMatches
	if truncated {
		matches = matches[:globMaxMatches]
	}

	return json.Marshal(map[string]any{
		"root":      rootPath,
		"matches":   matches,
		"truncated": truncated,
	})
}
