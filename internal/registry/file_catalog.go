package registry

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/intentrouter/pkg/models"
)

// reloadDelay lets editors finish writing before a watched file is re-read.
const reloadDelay = 100 * time.Millisecond

// Dir is a directory of YAML catalog files registered under one source.
type Dir struct {
	Path   string
	Source models.EntrySource
}

// catalogFile is the on-disk layout of a catalog file:
//
//	entries:
//	  - name: development
//	    type: agent
//	    priority: 10
//	    keywords: [implement, 实现]
type catalogFile struct {
	Entries []models.RegistryEntry `yaml:"entries"`
}

// FileCatalog layers builtin entries with YAML catalogs from user and project
// directories. Readers get an immutable snapshot swapped in on Reload.
type FileCatalog struct {
	dirs     []Dir
	builtin  []models.RegistryEntry
	snapshot atomic.Pointer[[]models.RegistryEntry]
	reloadMu sync.Mutex
	logger   *zap.Logger
}

// NewFileCatalog creates a catalog over dirs. Call Reload to load it.
func NewFileCatalog(dirs []Dir, builtin []models.RegistryEntry, logger *zap.Logger) *FileCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &FileCatalog{dirs: dirs, builtin: builtin, logger: logger}
	initial := append([]models.RegistryEntry(nil), builtin...)
	c.snapshot.Store(&initial)
	return c
}

// ListEntries returns every registered entry, including overridden ones.
func (c *FileCatalog) ListEntries() []models.RegistryEntry {
	return append([]models.RegistryEntry(nil), (*c.snapshot.Load())...)
}

// Resolved returns one winning entry per name.
func (c *FileCatalog) Resolved() []models.RegistryEntry {
	return Dedupe(*c.snapshot.Load())
}

// Reload re-reads every directory. Missing directories are ignored. Files that
// fail to parse are skipped and reported in the returned error; entries from
// the remaining files are still published.
func (c *FileCatalog) Reload() error {
	c.reloadMu.Lock()
	defer c.reloadMu.Unlock()

	entries := append([]models.RegistryEntry(nil), c.builtin...)
	var errs []error
	for _, dir := range c.dirs {
		loaded, err := loadDir(dir)
		if err != nil {
			errs = append(errs, err)
		}
		entries = append(entries, loaded...)
	}
	c.snapshot.Store(&entries)

	c.logger.Debug("catalog reloaded",
		zap.Int("entries", len(entries)),
		zap.Int("errors", len(errs)),
	)
	return errors.Join(errs...)
}

func loadDir(dir Dir) ([]models.RegistryEntry, error) {
	if dir.Path == "" {
		return nil, nil
	}
	files, err := catalogFiles(dir.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read catalog dir %s: %w", dir.Path, err)
	}

	var entries []models.RegistryEntry
	var errs []error
	for _, path := range files {
		loaded, err := loadFile(path, dir.Source)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		entries = append(entries, loaded...)
	}
	return entries, errors.Join(errs...)
}

func catalogFiles(dir string) ([]string, error) {
	items, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, item := range items {
		if item.IsDir() || !isCatalogFile(item.Name()) {
			continue
		}
		files = append(files, filepath.Join(dir, item.Name()))
	}
	sort.Strings(files)
	return files, nil
}

func isCatalogFile(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yaml" || ext == ".yml"
}

func loadFile(path string, source models.EntrySource) ([]models.RegistryEntry, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat catalog %s: %w", path, err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse catalog %s: %w", path, err)
	}

	entries := make([]models.RegistryEntry, 0, len(file.Entries))
	for _, e := range file.Entries {
		if strings.TrimSpace(e.Name) == "" {
			continue
		}
		e.Source = source
		e.RegisteredAt = info.ModTime()
		entries = append(entries, e)
	}
	return entries, nil
}

// Watch reloads the catalog whenever a catalog file changes. It blocks until
// ctx is done. Directories that do not exist when Watch starts are not watched.
func (c *FileCatalog) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create catalog watcher: %w", err)
	}
	defer watcher.Close()

	watched := 0
	for _, dir := range c.dirs {
		if dir.Path == "" {
			continue
		}
		if err := watcher.Add(dir.Path); err != nil {
			if os.IsNotExist(err) || errors.Is(err, os.ErrNotExist) {
				continue
			}
			return fmt.Errorf("watch catalog dir %s: %w", dir.Path, err)
		}
		watched++
	}
	c.logger.Debug("watching catalog directories", zap.Int("dirs", watched))

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isCatalogFile(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			c.logger.Info("catalog file changed, reloading", zap.String("file", event.Name))
			select {
			case <-time.After(reloadDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			if err := c.Reload(); err != nil {
				c.logger.Warn("catalog reload had errors", zap.Error(err))
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			c.logger.Error("catalog watcher error", zap.Error(err))

		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
