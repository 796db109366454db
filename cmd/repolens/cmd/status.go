package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the index watermark and statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		status, err := eng.Status(cmd.Context())
		if err != nil {
			return err
		}

		out := map[string]interface{}{
			"repo":    status.Repo,
			"indexed": status.Indexed,
			"embeddings": map[string]interface{}{
				"provider":   status.EmbeddingProvider,
				"dimensions": status.Dimensions,
			},
		}
		if status.Indexed {
			out["last_commit"] = status.LastCommitSHA
			out["last_indexed_at"] = status.LastIndexedAt
			out["total_files"] = status.TotalFiles
			out["total_chunks"] = status.TotalChunks
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
