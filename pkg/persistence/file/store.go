package file

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

const (
	workflowsDir  = "workflows"
	templatesDir  = "templates"
	executionsDir = "executions"

	dirPerm  = 0o755
	filePerm = 0o644
)

// readDocument loads a single JSON document into out. Returns fs.ErrNotExist
// when the document does not exist.
func (fp *Persistence) readDocument(dir, id string, out any) error {
	data, err := os.ReadFile(fp.documentPath(dir, id))
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s/%s.json: %w", dir, id, err)
	}

	return nil
}

// writeDocument persists a single JSON document, creating the directory on
// first use. The write goes through a temp file and rename so a crash never
// leaves a half-written document behind.
func (fp *Persistence) writeDocument(dir, id string, doc any) error {
	target := filepath.Join(fp.root, dir)
	if err := os.MkdirAll(target, dirPerm); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s.json: %w", dir, id, err)
	}

	tmp := fp.documentPath(dir, id) + ".tmp"
	if err := os.WriteFile(tmp, data, filePerm); err != nil {
		return fmt.Errorf("failed to write %s/%s.json: %w", dir, id, err)
	}

	return os.Rename(tmp, fp.documentPath(dir, id))
}

func (fp *Persistence) removeDocument(dir, id string) error {
	err := os.Remove(fp.documentPath(dir, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}

	return nil
}

// listIDs returns the document identifiers present under dir.
func (fp *Persistence) listIDs(dir string) ([]string, error) {
	entries, err := fs.Glob(os.DirFS(filepath.Join(fp.root, dir)), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s documents: %w", dir, err)
	}

	ids := make([]string, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, strings.TrimSuffix(entry, ".json"))
	}

	return ids, nil
}

func (fp *Persistence) documentPath(dir, id string) string {
	return filepath.Join(fp.root, dir, id+".json")
}
