package main

import (
	"fmt"
	"os"

	"knowbase/config"
	"knowbase/internal/cli"
)

func main() {
	if err := config.LoadDotEnv(""); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load .env: %v\n", err)
		os.Exit(1)
	}

	cli.Execute()
}
