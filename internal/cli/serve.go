package cli

import (
	"github.com/spf13/cobra"

	"paperqa/internal/httpapi"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the REST API server",
	Long: `Starts an HTTP server exposing upload, chat, list and delete
endpoints over the paper indexes in the storage directory.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	registry, err := buildRegistry()
	if err != nil {
		return err
	}

	server := httpapi.NewServer(registry, cfg, logger)
	return server.ListenAndServe()
}
