package billing

import (
	"fmt"
	"os"
	"sync"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/hiredeck/hiredeck/pkg/observability"
	"github.com/hiredeck/hiredeck/pkg/orgs"
)

// Limits resolves the active-job limit for an organization: the plan tier's
// default, unless an operator override for that organization is configured.
// Overrides come from a YAML file that can be hot-reloaded, so support can
// raise a single customer's cap without a deploy.
type Limits struct {
	mu        sync.RWMutex
	overrides map[string]int // keyed by external org id
	logger    *observability.Logger
}

// overridesFile is the on-disk shape of the overrides YAML.
type overridesFile struct {
	ActiveJobs map[string]int `yaml:"active_jobs"`
}

// NewLimits creates a limit resolver with no overrides.
func NewLimits(logger *observability.Logger) *Limits {
	return &Limits{
		overrides: make(map[string]int),
		logger:    logger,
	}
}

// ActiveJobLimit returns the number of jobs the organization may have
// published at once.
func (l *Limits) ActiveJobLimit(org *orgs.Organization) int {
	l.mu.RLock()
	override, ok := l.overrides[org.ExternalID]
	l.mu.RUnlock()
	if ok {
		return override
	}
	return defaultActiveJobLimit(PlanTierOf(org))
}

// LoadOverrides replaces the override table from the given YAML file.
func (l *Limits) LoadOverrides(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read overrides file: %w", err)
	}

	var file overridesFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse overrides file: %w", err)
	}

	overrides := make(map[string]int, len(file.ActiveJobs))
	for externalOrgID, limit := range file.ActiveJobs {
		if limit < 0 {
			return fmt.Errorf("negative active job override for %s", externalOrgID)
		}
		overrides[externalOrgID] = limit
	}

	l.mu.Lock()
	l.overrides = overrides
	l.mu.Unlock()

	l.logger.Infof("Loaded %d active-job limit overrides from %s", len(overrides), path)
	return nil
}

// WatchOverrides loads the overrides file and reloads it whenever it changes.
// A reload that fails to parse keeps the previous table. The watcher runs
// until stop is closed.
func (l *Limits) WatchOverrides(path string, stop <-chan struct{}) error {
	if err := l.LoadOverrides(path); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch overrides file: %w", err)
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := l.LoadOverrides(path); err != nil {
					l.logger.WithError(err).Error("Failed to reload limit overrides, keeping previous table")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.logger.WithError(err).Error("Overrides watcher error")
			case <-stop:
				return
			}
		}
	}()

	return nil
}
