package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/docrag-go/internal/version"
)

// NewVersionCmd constructs the `docrag version` command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the docrag version",
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("docrag %s (commit: %s, built: %s)\n", version.Version, version.Commit, version.BuildDate)
		},
	}
}
