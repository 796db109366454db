package cmd

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
)

var forceFull bool

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Run one indexing pass against the remote repository head",
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, _, _, err := setup()
		if err != nil {
			return err
		}
		defer func() { _ = eng.Close() }()

		report, err := eng.RunIndex(cmd.Context(), forceFull)
		if err != nil {
			return err
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]interface{}{
			"repo":            report.Repo,
			"mode":            string(report.Mode),
			"commit":          report.CommitSHA,
			"files_processed": report.FilesProcessed,
			"files_failed":    report.FilesFailed,
			"files_deleted":   report.FilesDeleted,
			"chunks_written":  report.ChunksWritten,
			"total_files":     report.TotalFiles,
			"total_chunks":    report.TotalChunks,
			"duration":        report.Duration.String(),
		})
	},
}

func init() {
	indexCmd.Flags().BoolVar(&forceFull, "full", false, "re-process every matching file instead of only changes")
	rootCmd.AddCommand(indexCmd)
}
