package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending work and cache freshness",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		muts, err := a.engine.ListPendingMutations()
		if err != nil {
			return err
		}
		evidence, err := a.engine.ListPendingEvidence()
		if err != nil {
			return err
		}
		conflicts, err := a.engine.ListConflicts()
		if err != nil {
			return err
		}
		fresh, err := a.engine.CacheFreshness()
		if err != nil {
			return err
		}

		if outputJSON {
			out := map[string]any{
				"pending_mutations": len(muts),
				"pending_evidence":  len(evidence),
				"conflicts":         len(conflicts),
				"signed_in":         a.tokens.AccessToken() != "",
			}
			if fresh != nil {
				out["cache_written_at"] = fresh.Format(time.RFC3339)
			}
			return printJSON(out)
		}

		fmt.Printf("pending mutations: %d\n", len(muts))
		fmt.Printf("pending evidence:  %d\n", len(evidence))
		fmt.Printf("conflicts:         %d\n", len(conflicts))
		if fresh == nil {
			fmt.Println("cache:             never written")
		} else {
			fmt.Printf("cache:             written %s (%s ago)\n",
				fresh.Format("2006-01-02 15:04:05"), time.Since(*fresh).Round(time.Second))
		}
		if a.tokens.AccessToken() == "" {
			fmt.Println("session:           signed out")
		} else {
			fmt.Println("session:           signed in")
		}
		return nil
	},
}

func init() {
	addOutputFlags(statusCmd)
	rootCmd.AddCommand(statusCmd)
}
