// Package allowlist resolves upgraded plans granted to specific emails out of band.
package allowlist

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/therealutkarshpriyadarshi/promptdesk/internal/logging"
	"github.com/therealutkarshpriyadarshi/promptdesk/pkg/models"
)

// List is an ordered email -> plan code list. Safe for concurrent use.
type List struct {
	mu      sync.RWMutex
	entries []models.AllowListEntry
	path    string
	logger  *logging.Logger
}

type listFile struct {
	Entries []models.AllowListEntry `yaml:"entries"`
}

// New creates a list from in-memory entries
func New(entries []models.AllowListEntry, logger *logging.Logger) *List {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	l := &List{logger: logger.WithComponent("allowlist")}
	l.set(entries)
	return l
}

// Load reads the list from a YAML file. A missing file yields an empty list.
func Load(path string, logger *logging.Logger) (*List, error) {
	l := New(nil, logger)
	l.path = path
	if err := l.Reload(); err != nil {
		return nil, err
	}
	return l, nil
}

// Reload re-reads the backing file. On error the previous entries are kept.
func (l *List) Reload() error {
	if l.path == "" {
		return nil
	}

	data, err := os.ReadFile(l.path)
	if os.IsNotExist(err) {
		l.logger.Warnf("allow-list file %s not found, treating as empty", l.path)
		l.set(nil)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read allow-list: %w", err)
	}

	var f listFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to parse allow-list: %w", err)
	}

	l.set(f.Entries)
	l.logger.Infof("loaded %d allow-list entries", len(f.Entries))
	return nil
}

func (l *List) set(entries []models.AllowListEntry) {
	normalized := make([]models.AllowListEntry, 0, len(entries))
	for _, e := range entries {
		normalized = append(normalized, models.AllowListEntry{
			Email:    models.NormalizeEmail(e.Email),
			PlanCode: e.PlanCode,
		})
	}

	l.mu.Lock()
	l.entries = normalized
	l.mu.Unlock()
}

// Lookup returns the tier granted to email. The first entry with a
// recognised plan code wins; unrecognised codes are skipped.
func (l *List) Lookup(email string) (models.Tier, bool) {
	email = models.NormalizeEmail(email)

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, e := range l.entries {
		if e.Email != email {
			continue
		}
		tier, ok := models.TierForPlanCode(e.PlanCode)
		if !ok {
			l.logger.Warnf("ignoring unrecognised plan code %q", e.PlanCode)
			continue
		}
		return tier, true
	}
	return "", false
}

// TierFor returns the granted tier or the lowest tier
func (l *List) TierFor(email string) models.Tier {
	if tier, ok := l.Lookup(email); ok {
		return tier
	}
	return models.LowestTier
}

// Len returns the number of entries
func (l *List) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// Watch reloads the list whenever its file changes, until ctx is done.
// The parent directory is watched so editors that replace the file are handled.
func (l *List) Watch(ctx context.Context) error {
	if l.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(l.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch allow-list: %w", err)
	}

	target := filepath.Clean(l.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(evt.Name) != target {
					continue
				}
				if !reloadOn(evt) {
					continue
				}
				if err := l.Reload(); err != nil {
					l.logger.ErrorWithErr("allow-list reload failed, keeping previous entries", err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.ErrorWithErr("allow-list watcher error", err)
			}
		}
	}()

	return nil
}

// reloadOn reports whether evt leaves new content at the watched path. A
// rename or remove moves the file away, and the replacement shows up as its
// own Create.
func reloadOn(evt fsnotify.Event) bool {
	if evt.Has(fsnotify.Rename) || evt.Has(fsnotify.Remove) {
		return false
	}
	return evt.Has(fsnotify.Write) || evt.Has(fsnotify.Create)
}
