// Package file provides file-based persistence for conversations, messages and workflow records.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dukex/autograph/pkg/persistence"
)

const (
	conversationsDir = "conversations"
	messagesDir      = "messages"
	workflowsDir     = "workflows"
)

// Persistence implements the persistence.Persistence interface using the file system.
// Every record is one JSON file; a single lock serializes writers so conditional
// updates are atomic within the process.
type Persistence struct {
	root string
	mu   sync.RWMutex

	conversationRepo *ConversationRepository
	messageRepo      *MessageRepository
	workflowRepo     *WorkflowRecordRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.conversationRepo = &ConversationRepository{p: p}
	p.messageRepo = &MessageRepository{p: p}
	p.workflowRepo = &WorkflowRecordRepository{p: p}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (p *Persistence) ConversationRepository() persistence.ConversationRepository {
	return p.conversationRepo
}

func (p *Persistence) MessageRepository() persistence.MessageRepository {
	return p.messageRepo
}

func (p *Persistence) WorkflowRecordRepository() persistence.WorkflowRecordRepository {
	return p.workflowRepo
}

func (p *Persistence) path(dir, id string) string {
	return filepath.Join(p.root, dir, filepath.Base(filepath.Clean(id))+".json")
}

// read decodes the file into v, reporting false when it does not exist.
func (p *Persistence) read(dir, id string, v any) (bool, error) {
	body, err := os.ReadFile(p.path(dir, id))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s/%s: %w", dir, id, err)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return false, fmt.Errorf("failed to unmarshal %s/%s: %w", dir, id, err)
	}

	return true, nil
}

func (p *Persistence) write(dir, id string, v any) error {
	if err := os.MkdirAll(filepath.Join(p.root, dir), 0o750); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dir, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s/%s: %w", dir, id, err)
	}

	// Write then rename so readers never observe a partial file.
	target := p.path(dir, id)
	tmp := target + ".tmp"

	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write %s/%s: %w", dir, id, err)
	}

	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to commit %s/%s: %w", dir, id, err)
	}

	return nil
}

func (p *Persistence) remove(dir, id string) error {
	err := os.Remove(p.path(dir, id))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s/%s: %w", dir, id, err)
	}

	return nil
}

// ids lists the record ids stored in dir.
func (p *Persistence) ids(dir string) ([]string, error) {
	matches, err := fs.Glob(os.DirFS(p.root), dir+"/*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s files: %w", dir, err)
	}

	ids := make([]string, 0, len(matches))
	for _, match := range matches {
		ids = append(ids, strings.TrimSuffix(filepath.Base(match), ".json"))
	}

	return ids, nil
}

func (p *Persistence) conversationExists(id string) (bool, error) {
	_, err := os.Stat(p.path(conversationsDir, id))
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, fmt.Errorf("failed to stat conversation %s: %w", id, err)
}
