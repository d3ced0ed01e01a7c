package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/pmtech/fieldsync/internal/store"
)

var getCmd = &cobra.Command{
	Use:   "get <path>",
	Short: "GET an API path, falling back to the cache when offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		data, err := a.engine.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if json.Indent(&buf, data, "", "  ") == nil {
			fmt.Println(buf.String())
			return nil
		}
		os.Stdout.Write(data)
		return nil
	},
}

var postBody string

var postCmd = &cobra.Command{
	Use:   "post <path>",
	Short: "POST to an API path, queueing the call when offline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		var body []byte
		if postBody != "" {
			if !json.Valid([]byte(postBody)) {
				return fmt.Errorf("--body must be valid JSON")
			}
			body = []byte(postBody)
		}
		res, err := a.engine.Post(cmd.Context(), args[0], body)
		if err != nil {
			return err
		}
		if res.Queued {
			fmt.Printf("offline: queued as %s\n", res.QueueID)
			return nil
		}
		if len(res.Body) > 0 {
			os.Stdout.Write(res.Body)
			fmt.Println()
		}
		return nil
	},
}

var uploadChecklistItem string

var uploadCmd = &cobra.Command{
	Use:   "upload <task-id> <file>",
	Short: "Upload evidence for a task, queueing the file when offline",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp()
		if err != nil {
			return err
		}
		defer a.Close()

		taskID, file := args[0], args[1]
		data, err := os.ReadFile(file)
		if err != nil {
			return err
		}

		kind := store.EvidenceKindTask
		var itemID *string
		if uploadChecklistItem != "" {
			kind = store.EvidenceKindChecklist
			itemID = &uploadChecklistItem
		}
		contentType := mime.TypeByExtension(filepath.Ext(file))

		res, err := a.engine.UploadEvidence(cmd.Context(), kind, taskID, itemID, filepath.Base(file), contentType, data)
		if err != nil {
			return err
		}
		if res.Queued {
			fmt.Printf("offline: queued as %s\n", res.QueueID)
			return nil
		}
		fmt.Println("uploaded")
		return nil
	},
}

func init() {
	postCmd.Flags().StringVar(&postBody, "body", "", "JSON request body")
	uploadCmd.Flags().StringVar(&uploadChecklistItem, "checklist-item", "", "Attach to a checklist item instead of the task")
	rootCmd.AddCommand(getCmd, postCmd, uploadCmd)
}
