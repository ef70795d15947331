// Package knowledgebase stores plain text documents in a local folder.
package knowledgebase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/0xcro3dile/docqa-go/internal/domain/entities"
	"github.com/0xcro3dile/docqa-go/internal/domain/ports"
)

var _ ports.KnowledgeBase = (*Folder)(nil)

// Folder implements ports.KnowledgeBase on a directory.
type Folder struct {
	dir        string
	extensions []string
}

// NewFolder returns a knowledge base rooted at dir. Only files with one of the
// given extensions (compared case-insensitively) are visible; default ".txt".
func NewFolder(dir string, extensions ...string) *Folder {
	if len(extensions) == 0 {
		extensions = []string{".txt"}
	}
	lowered := make([]string, len(extensions))
	for i, e := range extensions {
		lowered[i] = strings.ToLower(e)
	}
	return &Folder{dir: dir, extensions: lowered}
}

// Dir returns the folder path.
func (f *Folder) Dir() string {
	return f.dir
}

// Ensure creates the folder if it does not exist yet.
func (f *Folder) Ensure() error {
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return fmt.Errorf("creating knowledge base folder: %w", err)
	}
	return nil
}

// SupportedExtensions returns file extensions this folder exposes.
func (f *Folder) SupportedExtensions() []string {
	return f.extensions
}

// List returns metadata for every supported regular file, sorted by name.
func (f *Folder) List(ctx context.Context) ([]entities.KBFile, error) {
	entries, err := f.entries()
	if err != nil {
		return nil, err
	}

	files := make([]entities.KBFile, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		info, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		files = append(files, entities.KBFile{
			Name:         e.Name(),
			Size:         info.Size(),
			LastModified: info.ModTime(),
			Type:         strings.ToLower(filepath.Ext(e.Name())),
		})
	}
	return files, nil
}

// Names returns the supported file names in search order.
func (f *Folder) Names(_ context.Context) ([]string, error) {
	entries, err := f.entries()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name()
	}
	return names, nil
}

// Read returns the content of one file. Directory components in name are ignored.
func (f *Folder) Read(_ context.Context, name string) (string, error) {
	path, err := f.path(name)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.Mode().IsRegular()) {
		return "", entities.ErrKBFileNotFound
	}
	if err != nil {
		return "", err
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(content), nil
}

// Save writes data under name, replacing any existing file.
func (f *Folder) Save(_ context.Context, name string, data []byte) error {
	path, err := f.path(name)
	if err != nil {
		return err
	}
	if err := f.Ensure(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".upload-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), path)
}

func (f *Folder) path(name string) (string, error) {
	base := filepath.Base(name)
	if base == "." || base == ".." || base == string(filepath.Separator) {
		return "", entities.ErrKBFileNotFound
	}
	return filepath.Join(f.dir, base), nil
}

// entries returns the supported regular files, sorted by name.
func (f *Folder) entries() ([]fs.DirEntry, error) {
	info, err := os.Stat(f.dir)
	if errors.Is(err, fs.ErrNotExist) || (err == nil && !info.IsDir()) {
		return nil, entities.ErrKBMissing
	}
	if err != nil {
		return nil, err
	}

	all, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, fmt.Errorf("reading knowledge base folder: %w", err)
	}

	entries := make([]fs.DirEntry, 0, len(all))
	for _, e := range all {
		if !e.Type().IsRegular() || !f.supported(e.Name()) {
			continue
		}
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	return entries, nil
}

func (f *Folder) supported(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, e := range f.extensions {
		if ext == e {
			return true
		}
	}
	return false
}
