package cli

import (
	"time"

	"github.com/custodia-labs/pagewise/internal/core/domain"
)

// documentJSON is the JSON shape of a document's state.
type documentJSON struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Name         string    `json:"name"`
	StoragePath  string    `json:"storage_path"`
	Status       string    `json:"status"`
	Stage        string    `json:"stage,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	TotalPages   int       `json:"total_pages"`
	TotalChunks  int       `json:"total_chunks"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func documentView(doc *domain.DocumentRecord) documentJSON {
	return documentJSON{
		ID:           doc.ID,
		UserID:       doc.UserID,
		Name:         doc.Name,
		StoragePath:  doc.StoragePath,
		Status:       string(doc.State.Status),
		Stage:        string(doc.State.Stage),
		ErrorMessage: doc.State.ErrorMessage,
		TotalPages:   doc.State.TotalPages,
		TotalChunks:  doc.State.TotalChunks,
		CreatedAt:    doc.CreatedAt,
		UpdatedAt:    doc.UpdatedAt,
	}
}
