package main

import (
	"context"
	"fmt"

	"github.com/researchcli/research/internal/config"
	"github.com/researchcli/research/internal/llm"
	"github.com/researchcli/research/internal/llm/contract"
	"github.com/researchcli/research/internal/orchestrator"
	"github.com/researchcli/research/internal/store"
	"github.com/researchcli/research/internal/tool"

	_ "github.com/researchcli/research/internal/tool/builtin"
)

// components wires the full runtime for one command invocation.
type components struct {
	registry *llm.Registry
	runner   *tool.Runner
	engine   *orchestrator.Orchestrator
	store    *store.Store
}

func buildComponents(ctx context.Context) (*components, error) {
	registry, err := llm.NewRegistry(ctx, cfg.Providers)
	if err != nil {
		return nil, fmt.Errorf("initialize providers: %w", err)
	}

	runner, err := buildToolRunner()
	if err != nil {
		return nil, err
	}

	engine := orchestrator.New(registry, runner, orchestrator.Options{
		MaxTurns: cfg.Session.MaxTurns,
		Stream:   cfg.Session.Stream,
		Params:   generationParams(cfg.Generation),
		Fallback: orchestrator.FallbackPolicy{FallbackModel: cfg.Models.Fallback},
	})

	dir, err := store.ResolveDir(cfg.Session.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve sessions dir: %w", err)
	}
	st, err := store.Open(dir)
	if err != nil {
		return nil, err
	}

	return &components{
		registry: registry,
		runner:   runner,
		engine:   engine,
		store:    st,
	}, nil
}

func (c *components) Stop() {
	if c.store != nil {
		c.store.Close()
	}
}

func buildToolRunner() (*tool.Runner, error) {
	tools, err := tool.InstantiateBuiltins(tool.BuiltinOptions{
		Workdir:          cfg.Tools.Workdir,
		ReadFileMaxBytes: int64(cfg.Tools.ReadFileMaxBytes),
	})
	if err != nil {
		return nil, fmt.Errorf("initialize tools: %w", err)
	}

	registry := tool.NewRegistry()
	for _, t := range tools {
		registry.Register(t)
	}
	return tool.NewRunner(registry), nil
}

func generationParams(gen config.GenerationConfig) contract.GenerationParams {
	params := contract.GenerationParams{
		TopK:          int32(gen.TopK),
		MaxTokens:     int32(gen.MaxTokens),
		StopSequences: gen.StopSequences,
	}
	if gen.Temperature > 0 {
		t := float32(gen.Temperature)
		params.Temperature = &t
	}
	if gen.TopP > 0 {
		p := float32(gen.TopP)
		params.TopP = &p
	}
	return params
}
