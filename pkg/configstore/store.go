// pkg/configstore/store.go
package configstore

import (
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

// Store holds the loaded check configuration and code allow-lists.
// Loads replace the previous maps wholesale.
type Store struct {
	mu     sync.RWMutex
	checks *model.CheckConfig
	codes  model.CodeAllowList
	logger *zap.Logger
}

// New creates an empty store
func New(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.L()
	}
	return &Store{
		codes:  make(model.CodeAllowList),
		logger: logger.Named("configstore"),
	}
}

// ReplaceChecks swaps in a new check configuration
func (s *Store) ReplaceChecks(cfg *model.CheckConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.checks = cfg
	if cfg == nil {
		s.logger.Info("Check configuration cleared")
		return
	}
	s.logger.Info("Check configuration loaded", zap.Strings("tables", cfg.Order))
}

// ReplaceCodes swaps in a copy of a new allow-list map
func (s *Store) ReplaceCodes(codes model.CodeAllowList) {
	codes = copyCodes(codes)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes = codes
	for table, fields := range codes {
		names := make([]string, 0, len(fields))
		for field := range fields {
			names = append(names, field)
		}
		s.logger.Debug("System codes loaded", zap.String("table", table), zap.Strings("fields", names))
	}
}

// Checks returns the current check configuration, nil before the first load
func (s *Store) Checks() *model.CheckConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.checks
}

// HasChecks reports whether a non-empty check configuration is loaded
func (s *Store) HasChecks() bool {
	return !s.Checks().Empty()
}

// ValidCodes returns the allow-list of a field, nil when none is configured
func (s *Store) ValidCodes(table, field string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.codes.Codes(table, field)
}

// LoadChecksFile loads a CSV or YAML check configuration by extension.
// YAML files may also carry allow-lists; each table they name has its
// allow-lists replaced, other tables keep theirs.
func (s *Store) LoadChecksFile(path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		cfg, codes, err := LoadCheckConfigYAMLFile(path)
		if err != nil {
			return err
		}
		s.ReplaceChecks(cfg)
		if len(codes) > 0 {
			s.replaceTableCodes(codes)
		}
		return nil
	default:
		cfg, err := LoadCheckConfigFile(path)
		if err != nil {
			return err
		}
		s.ReplaceChecks(cfg)
		return nil
	}
}

// LoadCodesFile loads an allow-list CSV
func (s *Store) LoadCodesFile(path string) error {
	codes, err := LoadCodeAllowListFile(path)
	if err != nil {
		return err
	}
	s.ReplaceCodes(codes)
	return nil
}

func (s *Store) replaceTableCodes(codes model.CodeAllowList) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := copyCodes(s.codes)
	for table, fields := range copyCodes(codes) {
		next[table] = fields
	}
	s.codes = next
}

func copyCodes(codes model.CodeAllowList) model.CodeAllowList {
	out := make(model.CodeAllowList, len(codes))
	for table, fields := range codes {
		for field, list := range fields {
			out.Put(table, field, append([]string(nil), list...))
		}
	}
	return out
}
