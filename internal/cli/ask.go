package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	askQuestion string
	askJSON     bool
)

var askCmd = &cobra.Command{
	Use:   "ask <paper-id>",
	Short: "Ask a single question about a paper",
	Long: `Ask a one-shot question against an ingested paper.

Examples:
  paperqa ask attention_is_all_you_need -q "What is multi-head attention?"
  paperqa ask my_paper -q "Summarize the results" --json`,
	Args: cobra.ExactArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)
	askCmd.Flags().StringVarP(&askQuestion, "question", "q", "", "question to ask (required)")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "output as JSON")
	askCmd.MarkFlagRequired("question")
}

func runAsk(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	answer, err := registry.Answer(cmd.Context(), args[0], askQuestion)
	if err != nil {
		return err
	}

	if askJSON {
		output, _ := json.MarshalIndent(answer, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	fmt.Println(answer.Text)
	if len(answer.Sources) > 0 {
		fmt.Println("\nSources:")
		for i, src := range answer.Sources {
			preview := strings.ReplaceAll(src.Text, "\n", " ")
			if len(preview) > 200 {
				preview = preview[:200] + "..."
			}
			fmt.Printf("  [%d] (score: %.3f) %s\n", i+1, src.Score, preview)
		}
	}
	return nil
}
