package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var papersJSON bool

var papersCmd = &cobra.Command{
	Use:   "papers",
	Short: "List ingested papers",
	RunE:  runPapers,
}

func init() {
	rootCmd.AddCommand(papersCmd)
	papersCmd.Flags().BoolVar(&papersJSON, "json", false, "output as JSON")
}

func runPapers(cmd *cobra.Command, args []string) error {
	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	papers, err := registry.List()
	if err != nil {
		return err
	}

	if papersJSON {
		output, _ := json.MarshalIndent(papers, "", "  ")
		fmt.Println(string(output))
		return nil
	}

	if len(papers) == 0 {
		fmt.Println("No papers ingested yet. Run 'paperqa ingest <file>' first.")
		return nil
	}
	for _, p := range papers {
		fmt.Printf("  %-40s %s\n", p.ID, p.Name)
	}
	return nil
}
