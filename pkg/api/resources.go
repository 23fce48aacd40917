package api

import "encoding/json"

// ListPage is a cursor page of resource objects.
type ListPage struct {
	Object  string            `json:"object"`
	Data    []json.RawMessage `json:"data"`
	FirstID string            `json:"first_id,omitempty"`
	LastID  string            `json:"last_id,omitempty"`
	HasMore bool              `json:"has_more"`
}

// FineTuningJob is a fine-tuning job resource.
type FineTuningJob struct {
	ID              string          `json:"id"`
	Object          string          `json:"object"`
	Model           ModelID         `json:"model"`
	Status          string          `json:"status"`
	Hyperparameters Hyperparameters `json:"hyperparameters"`
	Error           *APIError       `json:"error,omitempty"`
}

// Hyperparameters of a fine-tuning job. Each is "auto" or a number.
type Hyperparameters struct {
	NEpochs   *AutoOrInt `json:"n_epochs,omitempty"`
	BatchSize *AutoOrInt `json:"batch_size,omitempty"`
}
