// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package export

import (
	"encoding/json"
	"time"

	"github.com/jeranaias/parley/internal/model"
)

// =============================================================================
// JSON EXPORTER
// =============================================================================

// JSONExporter exports transcripts to JSON. The document always carries the
// full chat and every message; Options only supply the export time.
type JSONExporter struct {
	options *Options
}

// NewJSONExporter creates a new JSON exporter.
func NewJSONExporter(opts *Options) *JSONExporter {
	if opts == nil {
		opts = DefaultOptions()
	}
	return &JSONExporter{options: opts}
}

type jsonDocument struct {
	Transcript
	ExportedAt time.Time `json:"exported_at"`
	Generator  string    `json:"generator"`
}

// Export renders t as indented JSON.
func (e *JSONExporter) Export(t Transcript) ([]byte, error) {
	if t.Messages == nil {
		t.Messages = []model.Message{}
	}
	doc := jsonDocument{
		Transcript: t,
		ExportedAt: e.options.now().UTC(),
		Generator:  "parley",
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// FileExtension returns the file extension for JSON.
func (e *JSONExporter) FileExtension() string {
	return ".json"
}

// MimeType returns the MIME type for JSON.
func (e *JSONExporter) MimeType() string {
	return "application/json"
}
