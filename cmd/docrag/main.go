// Command docrag is the entry point for the document ingestion and
// retrieval pipeline. It provides a CLI interface (via Cobra) and an HTTP
// server exposing upload, search, and question-answering endpoints.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/docrag-go/cmd/docrag/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
