// pkg/masking/masker.go
package masking

import (
	"fmt"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/model"
)

const (
	tablePrefix  = "table_"
	columnPrefix = "col_"
)

// ColumnMapping pairs an original column name with its token
type ColumnMapping struct {
	Original string `json:"original"`
	Token    string `json:"token"`
}

// TableMapping pairs an original table name with its token and its columns
type TableMapping struct {
	Original string          `json:"original"`
	Token    string          `json:"token"`
	Columns  []ColumnMapping `json:"columns"`
}

// tableScope holds the bidirectional column maps of one table
type tableScope struct {
	original string
	token    string
	columns  []ColumnMapping
	byName   map[string]string
	byToken  map[string]string
}

// IdentifierMasker replaces schema identifiers with neutral tokens before text
// leaves the process and restores them afterwards. Tokens are assigned in
// first-seen order: tables get table_N, columns get col_N within their table.
type IdentifierMasker struct {
	mu      sync.RWMutex
	logger  *zap.Logger
	tables  []*tableScope
	byName  map[string]*tableScope
	byToken map[string]*tableScope
}

// NewIdentifierMasker creates an empty masker
func NewIdentifierMasker(logger *zap.Logger) *IdentifierMasker {
	if logger == nil {
		logger = zap.L()
	}
	return &IdentifierMasker{
		logger:  logger.Named("masking"),
		byName:  make(map[string]*tableScope),
		byToken: make(map[string]*tableScope),
	}
}

// MaskTable returns the token of a table, assigning the next one on first sight
func (m *IdentifierMasker) MaskTable(original string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.table(original).token
}

// MaskColumn returns the token of a column within its table, registering both as needed
func (m *IdentifierMasker) MaskColumn(table, original string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.column(m.table(table), original)
}

// table must be called with the write lock held
func (m *IdentifierMasker) table(original string) *tableScope {
	if s, ok := m.byName[original]; ok {
		return s
	}
	s := &tableScope{
		original: original,
		token:    fmt.Sprintf("%s%d", tablePrefix, len(m.tables)+1),
		byName:   make(map[string]string),
		byToken:  make(map[string]string),
	}
	m.tables = append(m.tables, s)
	m.byName[original] = s
	m.byToken[s.token] = s
	return s
}

// column must be called with the write lock held
func (m *IdentifierMasker) column(s *tableScope, original string) string {
	if tok, ok := s.byName[original]; ok {
		return tok
	}
	tok := fmt.Sprintf("%s%d", columnPrefix, len(s.columns)+1)
	s.columns = append(s.columns, ColumnMapping{Original: original, Token: tok})
	s.byName[original] = tok
	s.byToken[tok] = original
	return tok
}

// UnmaskTable returns the original name of a table token. Unknown tokens pass through.
func (m *IdentifierMasker) UnmaskTable(token string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if s, ok := m.byToken[token]; ok {
		return s.original
	}
	return token
}

// UnmaskColumn returns the original name of a column token. The table may be
// given by its original name or its token. Unknown tokens pass through.
func (m *IdentifierMasker) UnmaskColumn(table, token string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.byName[table]
	if !ok {
		s, ok = m.byToken[table]
	}
	if !ok {
		return token
	}
	if original, ok := s.byToken[token]; ok {
		return original
	}
	return token
}

// replacement is one whole-word substitution
type replacement struct {
	from string
	to   string
}

// maskPairs lists table originals before column originals
func (m *IdentifierMasker) maskPairs() []replacement {
	var pairs []replacement
	for _, s := range m.tables {
		pairs = append(pairs, replacement{s.original, s.token})
	}
	for _, s := range m.tables {
		for _, c := range s.columns {
			pairs = append(pairs, replacement{c.Original, c.Token})
		}
	}
	return pairs
}

// unmaskPairs lists table tokens before column tokens. A column token shared
// by several tables resolves to the first table that registered it.
func (m *IdentifierMasker) unmaskPairs() []replacement {
	var pairs []replacement
	for _, s := range m.tables {
		pairs = append(pairs, replacement{s.token, s.original})
	}
	for _, s := range m.tables {
		for _, c := range s.columns {
			pairs = append(pairs, replacement{c.Token, c.Original})
		}
	}
	return pairs
}

// MaskText replaces every known table name and then every known column name
// in text with its token. Matches are whole-word and case-insensitive.
func (m *IdentifierMasker) MaskText(text string) string {
	m.mu.RLock()
	pairs := m.maskPairs()
	m.mu.RUnlock()

	m.logger.Debug("Masking text", zap.Int("identifiers", len(pairs)))
	return substitute(text, pairs)
}

// UnmaskText restores original names in text produced from masked input.
// Unknown tokens are left as they are.
func (m *IdentifierMasker) UnmaskText(text string) string {
	m.mu.RLock()
	pairs := m.unmaskPairs()
	m.mu.RUnlock()

	return substitute(text, pairs)
}

func substitute(text string, pairs []replacement) string {
	for _, p := range pairs {
		if p.from != "" {
			text = replaceWord(text, p.from, p.to)
		}
	}
	return text
}

// replaceWord replaces case-insensitive occurrences of word in text that are
// not adjacent to a letter, digit or underscore. Invalid UTF-8 in word is
// matched byte for byte.
func replaceWord(text, word, to string) string {
	n := len(word)
	fold := utf8.ValidString(word)

	var b strings.Builder
	last := 0
	for i := 0; i+n <= len(text); {
		if matchAt(text, i, word, fold) && !wordBefore(text, i) && !wordAfter(text, i+n) {
			b.WriteString(text[last:i])
			b.WriteString(to)
			i += n
			last = i
			continue
		}
		_, size := utf8.DecodeRuneInString(text[i:])
		i += size
	}
	if last == 0 {
		return text
	}
	b.WriteString(text[last:])
	return b.String()
}

func matchAt(text string, i int, word string, fold bool) bool {
	candidate := text[i : i+len(word)]
	if fold {
		return utf8.ValidString(candidate) && strings.EqualFold(candidate, word)
	}
	return candidate == word
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsNumber(r)
}

func wordBefore(text string, i int) bool {
	if i == 0 {
		return false
	}
	r, size := utf8.DecodeLastRuneInString(text[:i])
	return !(r == utf8.RuneError && size <= 1) && isWordRune(r)
}

func wordAfter(text string, i int) bool {
	if i >= len(text) {
		return false
	}
	r, size := utf8.DecodeRuneInString(text[i:])
	return !(r == utf8.RuneError && size <= 1) && isWordRune(r)
}

// MaskSchema registers every table and column and renders the schema twice,
// once with original names and once with tokens, one "Table: t (c TYPE, ...)" line per table
func (m *IdentifierMasker) MaskSchema(tables []model.TableMetadata) (original, masked string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	origLines := make([]string, 0, len(tables))
	maskedLines := make([]string, 0, len(tables))
	for i := range tables {
		t := &tables[i]
		s := m.table(t.Table)

		shadow := model.TableMetadata{Table: s.token, Columns: make([]model.Column, len(t.Columns))}
		for j, col := range t.Columns {
			shadow.Columns[j] = col
			shadow.Columns[j].Name = m.column(s, col.Name)
		}

		origLines = append(origLines, t.Describe())
		maskedLines = append(maskedLines, shadow.Describe())
	}
	return strings.Join(origLines, "\n"), strings.Join(maskedLines, "\n")
}

// Mappings returns a snapshot of every mapping in registration order
func (m *IdentifierMasker) Mappings() []TableMapping {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]TableMapping, len(m.tables))
	for i, s := range m.tables {
		out[i] = TableMapping{
			Original: s.original,
			Token:    s.token,
			Columns:  append([]ColumnMapping(nil), s.columns...),
		}
	}
	return out
}

// Reset forgets every mapping
func (m *IdentifierMasker) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tables = nil
	m.byName = make(map[string]*tableScope)
	m.byToken = make(map[string]*tableScope)
}
