package httpapi

import "github.com/fyrsmithlabs/vaultorg/internal/report"

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
}

// FoldersResponse is the response body for GET /api/v1/folders.
type FoldersResponse struct {
	RunID        string               `json:"run_id"`
	TotalFolders int                  `json:"total_folders"`
	Folders      []report.FolderEntry `json:"folders"`
}

// SuggestionsResponse is the response body for GET /api/v1/suggestions.
type SuggestionsResponse struct {
	RunID    string   `json:"run_id"`
	Commands []string `json:"commands"`
}

// InboxResponse is the response body for GET /api/v1/inbox.
type InboxResponse struct {
	*report.InboxReport
	Commands []string `json:"commands,omitempty"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string `json:"message"`
}
