package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abdulraffayy/QCGProjectUKCompany-sub000/internal/draft"
)

var draftCmd = &cobra.Command{
	Use:   "draft",
	Short: "Inspect unsaved drafts",
	Long:  `List, show or discard drafts left behind by interrupted runs.`,
}

var draftListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored drafts",
	Args:  cobra.NoArgs,
	RunE:  runDraftList,
}

var draftShowCmd = &cobra.Command{
	Use:   "show [item-id]",
	Short: "Print a draft's content",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftShow,
}

var draftDiscardCmd = &cobra.Command{
	Use:   "discard [item-id]",
	Short: "Delete a draft",
	Args:  cobra.ExactArgs(1),
	RunE:  runDraftDiscard,
}

func init() {
	draftCmd.AddCommand(draftListCmd)
	draftCmd.AddCommand(draftShowCmd)
	draftCmd.AddCommand(draftDiscardCmd)
	rootCmd.AddCommand(draftCmd)
}

func runDraftList(cmd *cobra.Command, _ []string) error {
	store, err := draft.OpenSQLite(draftDir)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(cmd.Context())
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		cmd.Println("No drafts")
		return nil
	}
	for _, e := range entries {
		cmd.Printf("  %s  %s  %d chars\n", e.UpdatedAt.Local().Format("2006-01-02 15:04:05"), e.ItemID, len([]rune(e.Content)))
	}
	return nil
}

func runDraftShow(cmd *cobra.Command, args []string) error {
	store, err := draft.OpenSQLite(draftDir)
	if err != nil {
		return err
	}
	defer store.Close()

	e, ok, err := store.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no draft for %s", args[0])
	}
	cmd.Print(e.Content)
	if e.Content != "" {
		cmd.Println()
	}
	return nil
}

func runDraftDiscard(cmd *cobra.Command, args []string) error {
	store, err := draft.OpenSQLite(draftDir)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(cmd.Context(), args[0]); err != nil {
		return err
	}
	cmd.Printf("Discarded draft %s\n", args[0])
	return nil
}
