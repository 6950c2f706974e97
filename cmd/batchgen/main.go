package main

import (
	"os"

	"batchgen/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
