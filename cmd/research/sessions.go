package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/researchcli/research/internal/store"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List stored sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := store.ResolveDir(cfg.Session.Dir)
		if err != nil {
			return err
		}
		st, err := store.Open(dir)
		if err != nil {
			return err
		}
		defer st.Close()

		infos, err := st.List()
		if err != nil {
			return err
		}

		output, _ := cmd.Flags().GetString("output")
		if output == "yaml" {
			return yaml.NewEncoder(os.Stdout).Encode(infos)
		}

		if len(infos) == 0 {
			fmt.Println("No stored sessions.")
			return nil
		}
		for _, info := range infos {
			fmt.Printf("%-27s %-24s msgs=%-4d updated=%s\n",
				info.ID, info.Model, info.Messages, info.UpdatedAt.Local().Format(time.RFC3339))
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete [id]",
	Short: "Delete a stored session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := store.ResolveDir(cfg.Session.Dir)
		if err != nil {
			return err
		}
		st, err := store.Open(dir)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Delete(args[0]); err != nil {
			return fmt.Errorf("delete session %s: %w", args[0], err)
		}
		fmt.Printf("Deleted session %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.Flags().StringP("output", "o", "text", "output format (text, yaml)")
}
