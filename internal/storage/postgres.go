// Package storage keeps a snapshot of the dataset in PostgreSQL so the
// server can start from a database instead of a file.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq"

	"roadsafety/internal/config"
	"roadsafety/internal/logger"
	"roadsafety/internal/models"
)

const table = "road_safety_records"

// columns lists the attribute columns in AttributeCodes order.
var columns = models.AttributeCodes

type Storage struct {
	db *sql.DB
}

// New opens the configured database and creates the table if needed.
func New(cfg config.PostgresConfig) (*Storage, error) {
	return Open(cfg.ConnString())
}

// Open connects with a lib/pq connection string or postgres:// URL.
func Open(connStr string) (*Storage, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Storage{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

func (s *Storage) Close() error {
	return s.db.Close()
}

func (s *Storage) initSchema() error {
	if _, err := s.db.Exec(createTableQuery()); err != nil {
		return fmt.Errorf("failed to create %s: %w", table, err)
	}
	return nil
}

func createTableQuery() string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS " + table + " (\n")
	b.WriteString("\tcountry TEXT NOT NULL,\n\tyear INTEGER NOT NULL,\n")
	for _, c := range columns {
		typ := "DOUBLE PRECISION"
		if c == models.AttrDPS {
			typ = "BOOLEAN"
		}
		fmt.Fprintf(&b, "\t%s %s,\n", c, typ)
	}
	b.WriteString("\tupdated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,\n")
	b.WriteString("\tPRIMARY KEY (country, year)\n)")
	return b.String()
}

func upsertQuery() string {
	names := append([]string{"country", "year"}, columns...)
	params := make([]string, len(names))
	for i := range names {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	sets := make([]string, 0, len(columns)+1)
	for _, c := range columns {
		sets = append(sets, fmt.Sprintf("%s = EXCLUDED.%s", c, c))
	}
	sets = append(sets, "updated_at = CURRENT_TIMESTAMP")

	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) ON CONFLICT (country, year) DO UPDATE SET %s",
		table, strings.Join(names, ", "), strings.Join(params, ", "), strings.Join(sets, ", "))
}

func selectQuery() string {
	return fmt.Sprintf("SELECT country, year, %s FROM %s ORDER BY country, year",
		strings.Join(columns, ", "), table)
}

// args converts a record to query arguments. Absent values become NULL.
func args(r *models.Record) []any {
	out := make([]any, 0, len(columns)+2)
	out = append(out, r.Country, r.Year)
	for _, c := range columns {
		if c == models.AttrDPS {
			out = append(out, sql.NullBool{Bool: r.DPS.Bool, Valid: r.DPS.Valid})
			continue
		}
		v, ok := r.Value(c)
		out = append(out, sql.NullFloat64{Float64: v, Valid: ok})
	}
	return out
}

// SaveRecords upserts records on (country, year) in one transaction.
func (s *Storage) SaveRecords(ctx context.Context, records []models.Record) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertQuery())
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for i := range records {
		if _, err := stmt.ExecContext(ctx, args(&records[i])...); err != nil {
			return fmt.Errorf("failed to upsert %s/%d: %w", records[i].Country, records[i].Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	logger.Log.WithField("records", len(records)).Info("dataset snapshot saved")
	return nil
}

// LoadRecords reads every stored record ordered by country and year.
func (s *Storage) LoadRecords(ctx context.Context) ([]models.Record, error) {
	rows, err := s.db.QueryContext(ctx, selectQuery())
	if err != nil {
		return nil, fmt.Errorf("failed to query records: %w", err)
	}
	defer rows.Close()

	var out []models.Record
	for rows.Next() {
		r, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (models.Record, error) {
	var r models.Record
	floats := make([]sql.NullFloat64, len(columns))
	var dps sql.NullBool

	dest := make([]any, 0, len(columns)+2)
	dest = append(dest, &r.Country, &r.Year)
	for i, c := range columns {
		if c == models.AttrDPS {
			dest = append(dest, &dps)
			continue
		}
		dest = append(dest, &floats[i])
	}
	if err := row.Scan(dest...); err != nil {
		return r, fmt.Errorf("failed to scan record: %w", err)
	}

	for i, c := range columns {
		if c == models.AttrDPS {
			r.DPS = models.NullBool{Bool: dps.Bool, Valid: dps.Valid}
			continue
		}
		if floats[i].Valid {
			r.SetAttr(c, models.Some(floats[i].Float64))
		}
	}
	return r, nil
}
