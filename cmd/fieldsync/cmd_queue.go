package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect the pending mutation queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued mutations in replay order",
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
		if outputJSON {
			return printJSON(muts)
		}
		if len(muts) == 0 {
			fmt.Println("mutation queue is empty")
			return nil
		}
		for _, m := range muts {
			line := fmt.Sprintf("%s  %s %s  queued %s  attempts %d",
				m.ID, m.Method, m.Path, m.CreatedAt.Format("2006-01-02 15:04:05"), m.AttemptCount)
			if m.LastError != nil {
				line += "  last error: " + *m.LastError
			}
			fmt.Println(line)
		}
		return nil
	},
}

var evidenceCmd = &cobra.Command{
	Use:   "evidence",
	Short: "Inspect the pending evidence outbox",
}

var evidenceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued evidence uploads in replay order",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		metas, err := a.engine.ListPendingEvidence()
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(metas)
		}
		if len(metas) == 0 {
			fmt.Println("evidence outbox is empty")
			return nil
		}
		for _, ev := range metas {
			target := "task " + ev.TaskID
			if ev.ChecklistItemID != nil {
				target += " item " + *ev.ChecklistItemID
			}
			fmt.Printf("%s  %s (%s, %d bytes)  %s  attempts %d\n",
				ev.ID, ev.FileName, ev.ContentType, ev.SizeBytes, target, ev.AttemptCount)
		}
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueListCmd)
	evidenceCmd.AddCommand(evidenceListCmd)
	addOutputFlags(queueListCmd, evidenceListCmd)
	rootCmd.AddCommand(queueCmd, evidenceCmd)
}
