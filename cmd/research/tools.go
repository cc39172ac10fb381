package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type toolInfo struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools available to the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		runner, err := buildToolRunner()
		if err != nil {
			return err
		}

		var infos []toolInfo
		for _, def := range runner.Declarations() {
			infos = append(infos, toolInfo{Name: def.Name, Description: def.Description})
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "yaml" {
			return yaml.NewEncoder(os.Stdout).Encode(infos)
		}

		for _, info := range infos {
			fmt.Printf("%-12s %s\n", info.Name, info.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.Flags().StringP("output", "o", "text", "output format (text, yaml)")
}
