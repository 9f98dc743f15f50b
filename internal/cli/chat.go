package cli

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"paperqa/internal/tui"
)

var chatCmd = &cobra.Command{
	Use:   "chat <paper-id>",
	Short: "Chat interactively with a paper",
	Args:  cobra.ExactArgs(1),
	RunE:  runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	// Fail fast on unknown paper before entering the TUI.
	if err := registry.Load(args[0]); err != nil {
		return err
	}

	program := tea.NewProgram(tui.New(registry, args[0]), tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("chat failed: %w", err)
	}
	return nil
}
