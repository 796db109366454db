package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var maxResults int

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Retrieve code snippets for a natural-language question",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		query := strings.Join(args, " ")
		snippets, err := eng.Retrieve(cmd.Context(), query, maxResults)
		if err != nil {
			return err
		}

		if len(snippets) == 0 {
			cmd.Println("No relevant code found.")
			return nil
		}
		for i, sn := range snippets {
			cmd.Printf("── %d. %s  [%s, score %.3f]\n", i+1, sn.Path, sn.Source, sn.Score)
			cmd.Println(strings.TrimRight(sn.Content, "\n"))
			cmd.Println()
		}
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&maxResults, "max-results", "n", 0,
		"maximum snippets to return, 3-6 (0 uses the configured default)")
	rootCmd.AddCommand(searchCmd)
}
