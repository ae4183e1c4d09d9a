// pkg/archive/archive.go
package archive

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/connector"
	"github.com/David-Botos/data-quality/pkg/model"
)

// DefaultViewLimit bounds View when no positive limit is given
const DefaultViewLimit = 100

// ErrNothingToStore is returned when a store call has no records or no columns
var ErrNothingToStore = model.ErrNothingToStore

// surrogateColumn is added to every archived table without its own id column
const surrogateColumn = "result_id INTEGER PRIMARY KEY AUTOINCREMENT"

// ResultsArchive stores result sets as versioned tables catalogued in query_metadata
type ResultsArchive struct {
	db     *sqlx.DB
	path   string
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a ResultsArchive
type Option func(*ResultsArchive)

// WithClock replaces time.Now for table names and metadata timestamps
func WithClock(now func() time.Time) Option {
	return func(a *ResultsArchive) {
		a.now = now
	}
}

// Open opens (or creates) the archive database and migrates its catalog
func Open(ctx context.Context, path string, logger *zap.Logger, opts ...Option) (*ResultsArchive, error) {
	if logger == nil {
		logger = zap.L()
	}
	logger = logger.Named("archive")

	db, err := connector.OpenSQLite(path, connector.SQLiteWrite, 1)
	if err != nil {
		return nil, &model.ArchiveError{Op: "open", Err: err}
	}

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, &model.ArchiveError{Op: "migrate", Err: err}
	}

	a := &ResultsArchive{
		db:     sqlx.NewDb(db, "sqlite3"),
		path:   path,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}

	logger.Info("Results archive ready", zap.String("path", path))
	return a, nil
}

// Path returns the archive database file
func (a *ResultsArchive) Path() string {
	return a.path
}

// Close closes the archive database
func (a *ResultsArchive) Close() error {
	return a.db.Close()
}

// StoreFailed archives failed-check export rows
func (a *ResultsArchive) StoreFailed(ctx context.Context, records [][]string, columns []string, description string) (string, error) {
	return a.store(ctx, model.ArchiveFailedChecks, model.ProvenanceFailedChecks, stringRecords(records), columns, description)
}

// StorePassed archives passed-check export rows
func (a *ResultsArchive) StorePassed(ctx context.Context, records [][]string, columns []string, description string) (string, error) {
	return a.store(ctx, model.ArchivePassedChecks, model.ProvenancePassedChecks, stringRecords(records), columns, description)
}

// StoreQuery archives the rows of an ad-hoc query, recording the query text as provenance
func (a *ResultsArchive) StoreQuery(ctx context.Context, query string, rows [][]interface{}, columns []string, description string) (string, error) {
	return a.store(ctx, model.ArchiveQueryResult, query, rows, columns, description)
}

func (a *ResultsArchive) store(ctx context.Context, kind model.ArchiveKind, provenance string, rows [][]interface{}, columns []string, description string) (table string, err error) {
	if len(rows) == 0 || len(columns) == 0 {
		return "", ErrNothingToStore
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", &model.ArchiveError{Op: "store", Err: fmt.Errorf("record %d has %d values, want %d", i+1, len(row), len(columns))}
		}
	}

	now := a.now()
	base := fmt.Sprintf("%s_%s_v", kind, now.Format("20060102"))

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", &model.ArchiveError{Op: "store", Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				a.logger.Error("Failed to rollback transaction", zap.Error(rbErr), zap.Error(err))
			}
		}
	}()

	var maxVersion int
	if err = tx.GetContext(ctx, &maxVersion,
		`SELECT COALESCE(MAX(version), 0) FROM query_metadata WHERE table_name LIKE ? ESCAPE '\'`,
		escapeLike(base)+"%"); err != nil {
		return "", &model.ArchiveError{Op: "store", Err: fmt.Errorf("failed to read next version: %w", err)}
	}
	version := maxVersion + 1
	table = fmt.Sprintf("%s%d", base, version)

	if _, err = tx.ExecContext(ctx, createTableSQL(table, columns)); err != nil {
		return "", &model.ArchiveError{Op: "store", Table: table, Err: fmt.Errorf("failed to create table: %w", err)}
	}

	stmt, err := tx.PreparexContext(ctx, insertSQL(table, columns))
	if err != nil {
		return "", &model.ArchiveError{Op: "store", Table: table, Err: fmt.Errorf("failed to prepare insert: %w", err)}
	}
	defer stmt.Close()

	for i, row := range rows {
		args := make([]interface{}, len(row))
		for j, v := range row {
			args[j] = toText(v)
		}
		if _, err = stmt.ExecContext(ctx, args...); err != nil {
			return "", &model.ArchiveError{Op: "store", Table: table, Err: fmt.Errorf("failed to insert record %d: %w", i+1, err)}
		}
	}

	entry := model.ArchiveEntry{
		TableName:        table,
		ExecutionDate:    now.Format("2006-01-02"),
		Version:          version,
		OriginalQuery:    provenance,
		RowCount:         len(rows),
		ColumnCount:      len(columns),
		Description:      description,
		CreatedTimestamp: model.ExportTimestamp(now),
	}
	if _, err = tx.NamedExecContext(ctx, `
		INSERT INTO query_metadata
		(table_name, execution_date, version, original_query, row_count, column_count, description, created_timestamp)
		VALUES (:table_name, :execution_date, :version, :original_query, :row_count, :column_count, :description, :created_timestamp)`,
		entry); err != nil {
		return "", &model.ArchiveError{Op: "store", Table: table, Err: fmt.Errorf("failed to record metadata: %w", err)}
	}

	if err = tx.Commit(); err != nil {
		return "", &model.ArchiveError{Op: "store", Table: table, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	a.logger.Info("Stored result set",
		zap.String("table", table),
		zap.Int("version", version),
		zap.Int("rows", len(rows)),
		zap.Int("columns", len(columns)))
	return table, nil
}

func createTableSQL(table string, columns []string) string {
	defs := make([]string, 0, len(columns)+1)
	if !hasIDColumn(columns) {
		defs = append(defs, surrogateColumn)
	}
	for _, c := range columns {
		defs = append(defs, connector.QuoteIdentifier(c)+" TEXT")
	}
	return fmt.Sprintf("CREATE TABLE %s (%s)", connector.QuoteIdentifier(table), strings.Join(defs, ", "))
}

func insertSQL(table string, columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = connector.QuoteIdentifier(c)
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		connector.QuoteIdentifier(table), strings.Join(quoted, ", "), placeholders)
}

func hasIDColumn(columns []string) bool {
	for _, c := range columns {
		if strings.EqualFold(c, "id") {
			return true
		}
	}
	return false
}

// escapeLike escapes the LIKE wildcards of a literal prefix, '\' being the escape character
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// List returns every catalogued result set, newest first
func (a *ResultsArchive) List(ctx context.Context) ([]model.ArchiveEntry, error) {
	var entries []model.ArchiveEntry
	if err := a.db.SelectContext(ctx, &entries, `
		SELECT id, table_name, execution_date, version, original_query,
		       COALESCE(row_count, 0) AS row_count, COALESCE(column_count, 0) AS column_count,
		       COALESCE(description, '') AS description, created_timestamp
		FROM query_metadata
		ORDER BY created_timestamp DESC, id DESC`); err != nil {
		return nil, &model.ArchiveError{Op: "list", Err: err}
	}
	return entries, nil
}

// Entry returns the catalog row of one archived table
func (a *ResultsArchive) Entry(ctx context.Context, table string) (*model.ArchiveEntry, error) {
	var entry model.ArchiveEntry
	err := a.db.GetContext(ctx, &entry, `
		SELECT id, table_name, execution_date, version, original_query,
		       COALESCE(row_count, 0) AS row_count, COALESCE(column_count, 0) AS column_count,
		       COALESCE(description, '') AS description, created_timestamp
		FROM query_metadata
		WHERE table_name = ?`, table)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &model.ArchiveError{Op: "lookup", Table: table, Err: model.ErrArchiveNotFound}
	}
	if err != nil {
		return nil, &model.ArchiveError{Op: "lookup", Table: table, Err: err}
	}
	return &entry, nil
}

// View reads up to limit rows of a catalogued table. A limit of zero or less means DefaultViewLimit.
func (a *ResultsArchive) View(ctx context.Context, table string, limit int) (*model.ArchiveView, error) {
	if limit <= 0 {
		limit = DefaultViewLimit
	}
	if _, err := a.Entry(ctx, table); err != nil {
		return nil, err
	}

	rows, err := a.db.QueryxContext(ctx,
		fmt.Sprintf("SELECT * FROM %s LIMIT ?", connector.QuoteIdentifier(table)), limit)
	if err != nil {
		return nil, &model.ArchiveError{Op: "view", Table: table, Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &model.ArchiveError{Op: "view", Table: table, Err: err}
	}

	view := &model.ArchiveView{Table: table, Columns: columns, Rows: [][]string{}, Limit: limit}
	for rows.Next() {
		values, err := rows.SliceScan()
		if err != nil {
			return nil, &model.ArchiveError{Op: "view", Table: table, Err: err}
		}
		row := make([]string, len(values))
		for i, v := range values {
			row[i] = toString(v)
		}
		view.Rows = append(view.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &model.ArchiveError{Op: "view", Table: table, Err: err}
	}
	return view, nil
}

// Delete drops an archived table and its catalog row together
func (a *ResultsArchive) Delete(ctx context.Context, table string) (err error) {
	if _, err := a.Entry(ctx, table); err != nil {
		return err
	}

	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return &model.ArchiveError{Op: "delete", Table: table, Err: fmt.Errorf("failed to begin transaction: %w", err)}
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil {
				a.logger.Error("Failed to rollback transaction", zap.Error(rbErr), zap.Error(err))
			}
		}
	}()

	if _, err = tx.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", connector.QuoteIdentifier(table))); err != nil {
		return &model.ArchiveError{Op: "delete", Table: table, Err: fmt.Errorf("failed to drop table: %w", err)}
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM query_metadata WHERE table_name = ?`, table); err != nil {
		return &model.ArchiveError{Op: "delete", Table: table, Err: fmt.Errorf("failed to delete metadata: %w", err)}
	}
	if err = tx.Commit(); err != nil {
		return &model.ArchiveError{Op: "delete", Table: table, Err: fmt.Errorf("failed to commit transaction: %w", err)}
	}

	a.logger.Info("Deleted stored result", zap.String("table", table))
	return nil
}
