package libraries

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/yungbote/mdr-library-backend/internal/domain/versioning"
	"github.com/yungbote/mdr-library-backend/internal/platform/logger"
)

const reloadDebounce = 100 * time.Millisecond

// fileCatalogue is the YAML layout:
//
//	libraries:
//	  - name: Sponsor
//	    is_editable: true
type fileCatalogue struct {
	Libraries []struct {
		Name       string `yaml:"name"`
		IsEditable bool   `yaml:"is_editable"`
	} `yaml:"libraries"`
}

// ParseCatalogue decodes a YAML catalogue. Duplicate names are rejected.
func ParseCatalogue(raw []byte) ([]versioning.Library, error) {
	var doc fileCatalogue
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse library catalogue: %w", err)
	}
	seen := map[string]bool{}
	out := make([]versioning.Library, 0, len(doc.Libraries))
	for i, l := range doc.Libraries {
		name := strings.TrimSpace(l.Name)
		if name == "" {
			return nil, fmt.Errorf("library #%d has no name", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("library %q listed twice", name)
		}
		seen[name] = true
		out = append(out, versioning.Library{Name: name, IsEditable: l.IsEditable})
	}
	return out, nil
}

// FilePolicy serves a YAML catalogue and reloads it when the file changes.
// A catalogue that fails to parse is logged and the previous one kept.
type FilePolicy struct {
	*StaticPolicy
	path string
	log  *logger.Logger

	mu       sync.Mutex
	debounce *time.Timer
	reloads  int
}

func NewFilePolicy(path string, baseLog *logger.Logger) (*FilePolicy, error) {
	if baseLog == nil {
		baseLog = logger.NewNop()
	}
	p := &FilePolicy{
		StaticPolicy: NewStaticPolicy(),
		path:         filepath.Clean(path),
		log:          baseLog.With("policy", "FileLibraryPolicy", "path", path),
	}
	if err := p.Reload(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *FilePolicy) Reload() error {
	raw, err := os.ReadFile(p.path)
	if err != nil {
		return fmt.Errorf("read library catalogue: %w", err)
	}
	libs, err := ParseCatalogue(raw)
	if err != nil {
		return err
	}
	p.Replace(libs)
	p.mu.Lock()
	p.reloads++
	p.mu.Unlock()
	p.log.Info("library catalogue loaded", "libraries", len(libs))
	return nil
}

// Reloads counts successful loads, the initial one included.
func (p *FilePolicy) Reloads() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.reloads
}

// Run watches the catalogue's directory until ctx is done. Editors that
// replace the file by rename are covered because the directory is watched.
func (p *FilePolicy) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("library catalogue watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(p.path), err)
	}
	name := filepath.Base(p.path)

	for {
		select {
		case <-ctx.Done():
			p.stopDebounce()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != name {
				continue
			}
			if !slices.ContainsFunc([]fsnotify.Op{fsnotify.Write, fsnotify.Create, fsnotify.Rename}, event.Op.Has) {
				continue
			}
			p.debounceReload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			p.log.Warn("library catalogue watcher error", "error", err)
		}
	}
}

func (p *FilePolicy) debounceReload() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(reloadDebounce, func() {
		if err := p.Reload(); err != nil {
			p.log.Warn("library catalogue reload failed, keeping previous", "error", err)
		}
	})
}

func (p *FilePolicy) stopDebounce() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
}
