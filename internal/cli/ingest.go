package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"paperqa/internal/adapter/fs"
	"paperqa/internal/usecase"
)

var (
	ingestID       string
	ingestIncludes []string
	ingestExcludes []string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <file-or-dir>",
	Short: "Build the document index for one or more papers",
	Long: `Ingest a paper (or every matching file under a directory), split it
into hierarchical chunks, embed the leaf chunks, and persist the index.

Examples:
  paperqa ingest paper.pdf
  paperqa ingest notes.txt --id my_notes
  paperqa ingest ./papers --include '**/*.pdf' --exclude '**/drafts/**'`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
	ingestCmd.Flags().StringVar(&ingestID, "id", "", "paper id (default derived from filename; single file only)")
	ingestCmd.Flags().StringSliceVar(&ingestIncludes, "include", nil, "glob patterns to include (directory ingest)")
	ingestCmd.Flags().StringSliceVar(&ingestExcludes, "exclude", nil, "glob patterns to exclude (directory ingest)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("path does not exist: %w", err)
	}

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	var files []string
	if info.IsDir() {
		if ingestID != "" {
			return fmt.Errorf("--id applies to single-file ingest only")
		}
		walker := fs.NewWalker(ingestIncludes, ingestExcludes)
		files, err = walker.Walk(path)
		if err != nil {
			return fmt.Errorf("failed to scan directory: %w", err)
		}
		if len(files) == 0 {
			return fmt.Errorf("no matching files under %s", path)
		}
	} else {
		files = []string{path}
	}

	for _, file := range files {
		if err := ingestOne(cmd, registry, file); err != nil {
			return err
		}
	}
	return nil
}

func ingestOne(cmd *cobra.Command, registry *usecase.Registry, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}

	paperID := ingestID
	if paperID == "" {
		paperID = usecase.PaperIDFromFilename(path)
	}

	fmt.Printf("Ingesting %s as %q...\n", filepath.Base(path), paperID)

	var bar *progressbar.ProgressBar
	progress := func(done, total int) {
		if bar == nil {
			bar = progressbar.NewOptions(total,
				progressbar.OptionEnableColorCodes(true),
				progressbar.OptionShowBytes(false),
				progressbar.OptionSetWidth(40),
				progressbar.OptionShowCount(),
				progressbar.OptionSetDescription("[cyan]Embedding[reset]"),
				progressbar.OptionOnCompletion(func() {
					fmt.Println()
				}),
			)
		}
		bar.Set(done)
	}

	paper, err := registry.IngestFile(cmd.Context(), paperID, filepath.Base(path), data, progress)
	if err != nil {
		return fmt.Errorf("ingestion failed for %s: %w", path, err)
	}

	fmt.Printf("Indexed %q: %d leaf chunks\n", paper.ID, paper.Leaves)
	return nil
}
