package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"

	"github.com/samber/lo"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Enroll students from a directory tree",
	Long: `Enroll every sub-directory of <dir> as one student.

The directory name is the student id. An optional metadata.json with
{"name": "..."} supplies the display name. Images named front, left or
right are stored with that pose, other images with the import pose.
Students that already exist are skipped, so the command can be re-run.

Example:
  quickroll import ./students`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)

	importCmd.Flags().Bool("json", false, "Output summary as JSON")
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	dir := args[0]
	jsonOutput := mustGetBool(cmd, "json")

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	total := lo.CountBy(entries, func(e os.DirEntry) bool { return e.IsDir() })
	if total == 0 {
		fmt.Println("No student directories found.")
		return nil
	}

	e, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer e.store.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Importing students"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	result, err := e.roster.ImportDirectory(ctx, dir, func(string) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Println()
	fmt.Printf("Imported: %d students, %d embeddings\n", result.Students, result.Embeddings)
	if len(result.Skipped) > 0 {
		fmt.Printf("Skipped (already enrolled): %d\n", len(result.Skipped))
	}
	if len(result.Failed) > 0 {
		fmt.Printf("Failed: %d\n", len(result.Failed))
		ids := lo.Keys(result.Failed)
		slices.Sort(ids)
		for _, id := range ids {
			fmt.Printf("  - %s: %s\n", id, result.Failed[id])
		}
	}
	return nil
}
