package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var statusJSON bool

var statusCmd = &cobra.Command{
	Use:   "status [doc-id]",
	Short: "Show a document's processing state",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := services(cmd)
	if err != nil {
		return err
	}

	doc, err := s.Ingestion.Status(commandContext(cmd), args[0])
	if err != nil {
		return fmt.Errorf("document %s: %w", args[0], err)
	}

	if statusJSON {
		data, err := json.MarshalIndent(documentView(doc), "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal status: %w", err)
		}
		cmd.Println(string(data))
		return nil
	}

	cmd.Printf("Document: %s\n", doc.ID)
	cmd.Printf("  Name:    %s\n", doc.Name)
	cmd.Printf("  User:    %s\n", doc.UserID)
	cmd.Printf("  Path:    %s\n", doc.StoragePath)
	cmd.Printf("  Status:  %s\n", doc.State.Status)
	if doc.State.Stage != "" {
		cmd.Printf("  Stage:   %s\n", doc.State.Stage)
	}
	if doc.State.ErrorMessage != "" {
		cmd.Printf("  Error:   %s\n", doc.State.ErrorMessage)
	}
	if doc.State.TotalPages > 0 {
		cmd.Printf("  Pages:   %d\n", doc.State.TotalPages)
	}
	if doc.State.TotalChunks > 0 {
		cmd.Printf("  Chunks:  %d\n", doc.State.TotalChunks)
	}
	cmd.Printf("  Updated: %s\n", doc.UpdatedAt.Format("2006-01-02 15:04:05"))
	return nil
}
