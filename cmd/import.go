package cmd

import (
	"fmt"

	"github.com/iksnae/llmcapture/internal"
	"github.com/spf13/cobra"
)

var importCmd = &cobra.Command{
	Use:   "import <capture.json>",
	Short: "Import a single capture file",
	Long: `Import one captured session document. Re-importing a session id
that already exists is a no-op and reports "skipped".`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cfg, err := openStore()
		if err != nil {
			return err
		}

		importer := internal.NewImporter(store, cfg)
		result, err := importer.ImportFile(args[0])
		if err != nil {
			return err
		}

		switch result.Status {
		case internal.StatusSkipped:
			fmt.Printf("Session %s already imported, skipped\n", result.SessionID)
		default:
			fmt.Printf("Imported session %s: %d turns, %d interactions\n",
				result.SessionID, result.Turns, result.Interactions)
			if result.Dropped > 0 {
				fmt.Printf("Dropped %d interaction(s) without a request_id\n", result.Dropped)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}
