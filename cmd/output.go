package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/missing-persons/internal/database"
)

// personJSON is the JSON shape of a record printed by the CLI.
type personJSON struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Age         string    `json:"age,omitempty"`
	Description string    `json:"description,omitempty"`
	DateMissing string    `json:"date_missing,omitempty"`
	Contact     string    `json:"contact,omitempty"`
	Photo       string    `json:"photo,omitempty"`
	Model       string    `json:"model"`
	Dim         int       `json:"dim"`
	CreatedAt   time.Time `json:"created_at"`
}

func toPersonJSON(rec *database.PersonRecord) personJSON {
	return personJSON{
		ID:          rec.ID,
		Name:        rec.Name,
		Age:         rec.AgeLabel,
		Description: rec.Description,
		DateMissing: rec.DateMissing,
		Contact:     rec.Contact,
		Photo:       rec.PhotoPath,
		Model:       rec.Model,
		Dim:         rec.Dim,
		CreatedAt:   rec.CreatedAt,
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

// readPhotoFile reads an image from disk for embedding.
func readPhotoFile(path string) ([]byte, error) {
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read photo %s: %w", path, err)
	}
	return data, nil
}

// dash returns "-" for empty table cells.
func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
