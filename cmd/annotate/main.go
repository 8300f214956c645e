// Command annotate attaches generated annotations to a document file using
// the same engine as the HTTP service.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "annotate",
	Short:         "Annotate documents with generated explanations",
	SilenceUsage:  true,
	SilenceErrors: true,
}

// draftDir holds the SQLite draft database.
var draftDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&draftDir, "drafts", defaultDraftDir(), "Directory for the local draft store")
}

func defaultDraftDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".annotate"
	}
	return filepath.Join(home, ".annotate")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
