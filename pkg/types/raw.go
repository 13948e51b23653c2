// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// RawPaperDocument is the transient record of one fetched paper page. The
// metadata and question shapes vary by source version and are kept untyped;
// the normalize package reads them through its field table.
type RawPaperDocument struct {
	// Metadata is the question_paper object of the page props.
	Metadata map[string]any `json:"metadata" yaml:"metadata"`

	// Questions are the raw question records in page order.
	Questions []map[string]any `json:"questions" yaml:"questions"`

	// URL is the page the document was fetched from.
	URL string `json:"url" yaml:"url"`

	// LocalSaveDir is the working directory holding the document and its
	// images/ subdirectory. Empty when the document was not saved.
	LocalSaveDir string `json:"local_save_dir" yaml:"local_save_dir"`

	// LocalFilePath is where the document itself was written.
	LocalFilePath string `json:"local_file_path,omitempty" yaml:"local_file_path,omitempty"`
}
