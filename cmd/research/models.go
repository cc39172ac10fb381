package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/researchcli/research/internal/llm"
)

type modelInfo struct {
	Model        string `yaml:"model"`
	Provider     string `yaml:"provider"`
	ContextLimit int    `yaml:"context_limit"`
	TokenCounts  string `yaml:"token_counting"`
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models and their providers",
	RunE: func(cmd *cobra.Command, args []string) error {
		known := llm.KnownModels()

		names := make([]string, 0, len(known))
		for name := range known {
			names = append(names, name)
		}
		sort.Strings(names)

		infos := make([]modelInfo, 0, len(names))
		for _, name := range names {
			provider := known[name]
			counting := "estimated"
			if llm.SupportsNativeTokenCounting(provider) {
				counting = "native"
			}
			infos = append(infos, modelInfo{
				Model:        name,
				Provider:     string(provider),
				ContextLimit: llm.ApproximateContextLimit(name),
				TokenCounts:  counting,
			})
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "yaml" {
			return yaml.NewEncoder(os.Stdout).Encode(infos)
		}

		for _, info := range infos {
			fmt.Printf("%-28s %-10s ctx=%-8d tokens=%s\n", info.Model, info.Provider, info.ContextLimit, info.TokenCounts)
		}
		fmt.Println("\nUnlisted model IDs are routed by prefix; unmatched IDs go to gemini.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
	modelsCmd.Flags().StringP("output", "o", "text", "output format (text, yaml)")
}
