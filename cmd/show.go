package cmd

import (
	"fmt"
	"strings"

	"github.com/iksnae/llmcapture/internal"
	"github.com/spf13/cobra"
)

var showTurn float64

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's turns and interactions",
	Long: `Show the decomposed interactions of an imported session, grouped
by turn. Use --turn to narrow the output to a single turn.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, _, err := openStore()
		if err != nil {
			return err
		}

		session, err := store.GetSession(args[0])
		if err != nil {
			return err
		}
		if session == nil {
			return fmt.Errorf("session %s not found", args[0])
		}

		var interactions []internal.Interaction
		if cmd.Flags().Changed("turn") {
			interactions, err = store.GetTurnInteractions(session.ID, showTurn)
		} else {
			interactions, err = store.GetInteractions(session.ID)
		}
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(sessionHeading(session)))
		fmt.Println(idStyle.Render(session.ID))
		fmt.Println()

		lastTurn := -1.0
		for _, in := range interactions {
			if in.TurnNumber != lastTurn {
				fmt.Println(headerStyle.Render(fmt.Sprintf("Turn %s", formatTurn(in.TurnNumber))))
				lastTurn = in.TurnNumber
			}
			printInteraction(&in)
		}
		return nil
	},
}

func sessionHeading(session *internal.Session) string {
	if session.Title != "" {
		return session.Title
	}
	return session.ID
}

// formatTurn prints integer turns without a fraction and legacy split turns
// with their two sub-turn digits.
func formatTurn(turn float64) string {
	if turn == float64(int(turn)) {
		return fmt.Sprintf("%d", int(turn))
	}
	return fmt.Sprintf("%.2f", turn)
}

func printInteraction(in *internal.Interaction) {
	switch in.Type {
	case internal.InteractionRequest:
		label := fmt.Sprintf("[%d] request", in.Sequence)
		if in.Model != "" {
			label += " " + in.Model
		}
		if in.Bookkeeping {
			label += " (bookkeeping)"
		}
		fmt.Println(countStyle.Render(label))
		if in.UserInput != "" {
			fmt.Println(indent(truncate(in.UserInput, 400)))
		}
		for _, c := range in.Components {
			fmt.Println(dateStyle.Render(fmt.Sprintf("    component %d: %s (%d tokens)",
				c.OrderIndex, c.ComponentType, c.TokenCount)))
		}
	case internal.InteractionResponse:
		label := fmt.Sprintf("[%d] response %d", in.Sequence, in.StatusCode)
		if in.ErrorType != "" {
			label += " " + in.ErrorType
		}
		fmt.Println(countStyle.Render(label))
		if in.Content != "" {
			fmt.Println(indent(truncate(in.Content, 400)))
		}
		for _, sp := range in.Spans {
			detail := sp.SpanType
			if sp.ToolName != "" {
				detail += " " + sp.ToolName
			}
			if sp.Language != "" {
				detail += " (" + sp.Language + ")"
			}
			fmt.Println(dateStyle.Render(fmt.Sprintf("    span %d: %s", sp.OrderIndex, detail)))
		}
	}
}

func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = "  " + lines[i]
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

func init() {
	showCmd.Flags().Float64Var(&showTurn, "turn", 0, "Show only this turn number")
	rootCmd.AddCommand(showCmd)
}
