package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var conflictsCmd = &cobra.Command{
	Use:   "conflicts",
	Short: "Review operations the server permanently rejected",
}

var conflictsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List retained conflicts, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		conflicts, err := a.engine.ListConflicts()
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(conflicts)
		}
		if len(conflicts) == 0 {
			fmt.Println("no conflicts")
			return nil
		}
		for _, c := range conflicts {
			task := "-"
			if c.TaskID != nil {
				task = *c.TaskID
			}
			fmt.Printf("%s  [%s %d]  %s  task %s  %s\n",
				c.ID, c.Kind, c.Status, c.Path, task, c.Message)
		}
		return nil
	},
}

var conflictsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Discard all retained conflicts after review",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.ClearConflicts(); err != nil {
			return err
		}
		fmt.Println("conflicts cleared")
		return nil
	},
}

func init() {
	conflictsCmd.AddCommand(conflictsListCmd, conflictsClearCmd)
	addOutputFlags(conflictsListCmd)
	rootCmd.AddCommand(conflictsCmd)
}
