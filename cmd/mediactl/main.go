package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// a missing .env file is fine, the environment is read either way
	_ = godotenv.Load(".env")

	rootCmd := NewRootCommand(newCLI(os.Stdout))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
