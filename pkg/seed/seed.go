// pkg/seed/seed.go
package seed

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/David-Botos/data-quality/pkg/connector"
)

// Employee is one row of the sample employees table
type Employee struct {
	ID             int
	Name           string
	Email          string
	Phone          string
	DepartmentCode string
	Salary         float64
	HireDate       string
	Status         string
}

const createEmployees = `
	CREATE TABLE IF NOT EXISTS employees (
		id INTEGER PRIMARY KEY,
		name TEXT,
		email TEXT,
		phone TEXT,
		department_code TEXT,
		salary REAL,
		hire_date TEXT,
		status TEXT
	)`

const insertEmployee = `
	INSERT OR REPLACE INTO employees
	(id, name, email, phone, department_code, salary, hire_date, status)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

// Employees returns the sample rows. Rows 2 to 5 each carry deliberate defects:
// a missing TLD, an empty name, a short phone with a negative salary, and an
// unknown department code with an unparseable hire date.
func Employees() []Employee {
	return []Employee{
		{1, "John Doe", "john.doe@company.com", "555-0123", "IT001", 75000, "2023-01-15", "ACTIVE"},
		{2, "Jane Smith", "jane.smith@company", "555-0124", "HR002", 65000, "2023-02-01", "ACTIVE"},
		{3, "", "bob.wilson@company.com", "555-0125", "FIN003", 80000, "2023-03-01", "ACTIVE"},
		{4, "Alice Brown", "alice.brown@company.com", "123", "IT001", -5000, "2023-04-01", "INACTIVE"},
		{5, "Mike Davis", "mike.davis@company.com", "555-0127", "INVALID", 70000, "invalid-date", "ACTIVE"},
	}
}

// Seed creates the employees table if needed and upserts the sample rows in one transaction
func Seed(ctx context.Context, db *sql.DB) error {
	logger := zap.L().Named("seed")

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, createEmployees); err != nil {
		return fmt.Errorf("failed to create employees table: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEmployee)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	rows := Employees()
	for _, e := range rows {
		if _, err = stmt.ExecContext(ctx, e.ID, e.Name, e.Email, e.Phone, e.DepartmentCode, e.Salary, e.HireDate, e.Status); err != nil {
			return fmt.Errorf("failed to insert employee %d: %w", e.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	logger.Info("Seeded sample data", zap.String("table", "employees"), zap.Int("rows", len(rows)))
	return nil
}

// SeedFile opens (or creates) a SQLite file and seeds it
func SeedFile(ctx context.Context, path string) error {
	db, err := connector.OpenSQLite(path, connector.SQLiteWrite, 1)
	if err != nil {
		return err
	}
	defer db.Close()
	return Seed(ctx, db)
}

// TempDatabase seeds a fresh uniquely named SQLite file under dir and returns its path
func TempDatabase(ctx context.Context, dir string) (string, error) {
	path := filepath.Join(dir, fmt.Sprintf("sample_%s.db", uuid.NewString()))
	if err := SeedFile(ctx, path); err != nil {
		return "", err
	}
	return path, nil
}
