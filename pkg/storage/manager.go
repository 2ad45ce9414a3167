package storage

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"notionx/pkg/delivery"
	"notionx/pkg/models"
)

// Manager writes content as markdown files and tracks which ones exist
type Manager struct {
	outputDir string
	saved     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a new storage manager
func NewManager(outputDir string) (*Manager, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	manager := &Manager{
		outputDir: outputDir,
		saved:     make(map[string]bool),
	}

	if err := manager.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return manager, nil
}

func (m *Manager) scanExistingFiles() error {
	entries, err := os.ReadDir(m.outputDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".md" {
			m.saved[entry.Name()] = true
		}
	}

	return nil
}

// Name implements delivery.Sink
func (m *Manager) Name() string { return "markdown" }

// Deliver writes content to <author>-<hash>.md, replacing an earlier export of the same URL
func (m *Manager) Deliver(ctx context.Context, content *models.Content) (*delivery.Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := Render(content)
	if err != nil {
		return nil, err
	}

	name := FileName(content)
	path := filepath.Join(m.outputDir, name)
	if err := writeAtomic(path, data); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.saved[name] = true
	m.mu.Unlock()

	return &delivery.Receipt{
		Sink:        m.Name(),
		Location:    path,
		DeliveredAt: time.Now(),
	}, nil
}

// IsSaved reports whether content was already exported
func (m *Manager) IsSaved(content *models.Content) bool {
	name := FileName(content)

	m.mu.RLock()
	known := m.saved[name]
	m.mu.RUnlock()
	if known {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.outputDir, name)); err == nil {
		m.mu.Lock()
		m.saved[name] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// GetOutputDir returns the output directory path
func (m *Manager) GetOutputDir() string {
	return m.outputDir
}

// GetSavedCount returns the number of markdown files in the output directory
func (m *Manager) GetSavedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.saved)
}

var unsafeChars = regexp.MustCompile(`[^\p{L}\p{N}_.-]+`)

// FileName derives a stable file name from the author and URL
func FileName(content *models.Content) string {
	sum := sha256.Sum256([]byte(content.URL))
	hash := hex.EncodeToString(sum[:])[:8]

	author := strings.TrimPrefix(content.AuthorHandle(), "@")
	author = strings.Trim(unsafeChars.ReplaceAllString(author, "_"), "_.")
	if author == "" {
		author = content.Type
	}
	if author == "" {
		author = "page"
	}
	return fmt.Sprintf("%s-%s.md", author, hash)
}

type frontMatter struct {
	Title     string        `yaml:"title"`
	URL       string        `yaml:"url"`
	Author    string        `yaml:"author,omitempty"`
	Type      string        `yaml:"type"`
	Cover     string        `yaml:"cover,omitempty"`
	Tags      []string      `yaml:"tags,omitempty"`
	Stats     *models.Stats `yaml:"stats,omitempty"`
	Extracted time.Time     `yaml:"extracted_at"`
}

// Render formats content as markdown with YAML front matter
func Render(content *models.Content) ([]byte, error) {
	fm := frontMatter{
		Title:     firstLine(content.Title),
		URL:       content.URL,
		Author:    content.AuthorHandle(),
		Type:      content.Type,
		Cover:     content.Cover,
		Tags:      content.Tags,
		Extracted: content.ExtractedAt.UTC().Truncate(time.Second),
	}
	if content.Stats != (models.Stats{}) {
		stats := content.Stats
		fm.Stats = &stats
	}

	head, err := yaml.Marshal(fm)
	if err != nil {
		return nil, fmt.Errorf("failed to encode front matter: %w", err)
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	buf.Write(head)
	buf.WriteString("---\n\n")
	buf.WriteString(strings.Join(content.Paragraphs(), models.ItemSeparator))
	buf.WriteString("\n")
	return buf.Bytes(), nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// writeAtomic writes through a temporary file and renames it into place
func writeAtomic(filename string, data []byte) error {
	tempFile := filename + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
