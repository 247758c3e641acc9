package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var (
	// Styles
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62")).
			Padding(0, 1)

	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	idStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true)

	countStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	dateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported sessions",
	Long:  `List all imported sessions with their turn and interaction counts.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		sessions, err := store.ListSessions()
		if err != nil {
			return fmt.Errorf("failed to list sessions: %w", err)
		}

		if len(sessions) == 0 {
			fmt.Println("No sessions imported yet.")
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Sessions (%d)", len(sessions))))

		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Title", "Provider", "Model", "Turns", "Interactions", "Started"})
		for _, s := range sessions {
			table.Append([]string{
				s.ID,
				s.Title,
				s.PrimaryProvider,
				s.PrimaryModel,
				fmt.Sprintf("%d", s.TotalTurns),
				fmt.Sprintf("%d", s.TotalInteractions),
				s.StartedAt().Format(time.RFC3339),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
