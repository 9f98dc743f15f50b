package main

import (
	"github.com/joho/godotenv"

	"paperqa/internal/cli"
)

func main() {
	// Provider API keys may live in a local .env file; a missing file is fine.
	_ = godotenv.Load()
	cli.Execute()
}
