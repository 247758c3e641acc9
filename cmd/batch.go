package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/iksnae/llmcapture/internal"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var batchBackground bool

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Import every capture file in a directory",
	Long: `Import all *.json capture files in a directory, one file at a
time. A malformed file is recorded and skipped; the remaining files still
import. With --background the directory runs as a job on a background
worker and this command polls its status until it finishes.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}
		importer := internal.NewImporter(store, cfg)

		if batchBackground {
			return runBackgroundBatch(importer, args[0])
		}

		result := importer.ImportDirectory(args[0])
		printBatchResult(result)
		return nil
	},
}

func runBackgroundBatch(importer *internal.Importer, dir string) error {
	jobs := internal.NewJobStore(importer)
	defer jobs.Close()

	id := jobs.Submit(dir)
	fmt.Printf("Started background import job %s\n", id)

	for {
		time.Sleep(200 * time.Millisecond)
		status, ok := jobs.Status(id)
		if !ok {
			return fmt.Errorf("job %s disappeared", id)
		}
		switch status.State {
		case internal.JobDone:
			printBatchResult(status.Result)
			return nil
		case internal.JobFailed:
			return fmt.Errorf("job %s failed: %s", id, status.Error)
		}
	}
}

func printBatchResult(result *internal.BatchResult) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Imported", "Skipped", "Failed"})
	table.Append([]string{
		fmt.Sprintf("%d", result.Imported),
		fmt.Sprintf("%d", result.Skipped),
		fmt.Sprintf("%d", result.Failed),
	})
	table.Render()

	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	}
}

func init() {
	batchCmd.Flags().BoolVar(&batchBackground, "background", false, "Run the import on a background worker and poll until done")
	rootCmd.AddCommand(batchCmd)
}
