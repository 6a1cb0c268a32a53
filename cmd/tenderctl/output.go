package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/tenderwatch/ted-adapter/pkg/model"
)

type outputFile struct {
	Metadata outputMetadata `json:"metadata"`
	Tenders  []model.Tender `json:"tenders"`
}

type outputMetadata struct {
	FetchedAt time.Time   `json:"fetched_at"`
	Total     int         `json:"total"`
	Available int         `json:"available,omitempty"`
	Fields    int         `json:"fields,omitempty"`
	Query     string      `json:"query,omitempty"`
	Stats     model.Stats `json:"stats"`
}

// writeJSON writes v indented to path, or to stdout when path is "-".
func writeJSON(path string, stdout io.Writer, v any) error {
	w := stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
