package sink

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/multierr"
)

// Placeholder is the bind parameter style of a SQL driver.
type Placeholder int

const (
	// PlaceholderQuestion uses "?" parameters (SQLite, MySQL).
	PlaceholderQuestion Placeholder = iota
	// PlaceholderDollar uses "$1, $2, ..." parameters (PostgreSQL).
	PlaceholderDollar
)

// PlaceholderFor returns the placeholder style of a registered driver name.
// Unknown drivers use PlaceholderQuestion.
func PlaceholderFor(driver string) Placeholder {
	switch driver {
	case "pgx", "postgres", "postgresql":
		return PlaceholderDollar
	default:
		return PlaceholderQuestion
	}
}

// SQL is a Sink that inserts every batch into a table inside one
// transaction. If any insert fails the transaction is rolled back and
// nothing from the batch is stored.
type SQL[V any] struct {
	// DB is the database to write to. It is not closed by the sink.
	DB *sql.DB

	// Table is the table name. It is inserted into the statement as is.
	Table string

	// Columns lists the columns that Args fills, in order.
	Columns []string

	// Placeholder is the parameter style of the driver.
	Placeholder Placeholder

	// Suffix, if set, is appended to the INSERT statement, for example an
	// "ON CONFLICT (id) DO UPDATE SET body = excluded.body" clause so that a
	// key committed in an earlier batch is overwritten.
	Suffix string

	// Args returns the column values of an item.
	Args func(item V) ([]any, error)
}

// Commit implements buffer.Sink.
func (s *SQL[V]) Commit(ctx context.Context, batch []V) (err error) {
	query, err := s.insertQuery()
	if err != nil {
		return err
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sql sink: begin: %w", err)
	}
	defer func() {
		if err == nil {
			return
		}
		if rbErr := tx.Rollback(); !errors.Is(rbErr, sql.ErrTxDone) {
			err = multierr.Append(err, rbErr)
		}
	}()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("sql sink: prepare: %w", err)
	}
	defer stmt.Close()

	for i, item := range batch {
		args, err := s.Args(item)
		if err != nil {
			return fmt.Errorf("sql sink: args for item %d: %w", i, err)
		}
		if len(args) != len(s.Columns) {
			return fmt.Errorf("sql sink: item %d has %d values for %d columns", i, len(args), len(s.Columns))
		}

		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fmt.Errorf("sql sink: insert item %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sql sink: commit: %w", err)
	}
	return nil
}

func (s *SQL[V]) insertQuery() (string, error) {
	if s.DB == nil || s.Args == nil {
		return "", errors.New("sql sink: DB and Args must be set")
	}
	if s.Table == "" || len(s.Columns) == 0 {
		return "", errors.New("sql sink: Table and Columns must be set")
	}

	params := make([]string, len(s.Columns))
	for i := range params {
		if s.Placeholder == PlaceholderDollar {
			params[i] = fmt.Sprintf("$%d", i+1)
		} else {
			params[i] = "?"
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "INSERT INTO %s (%s) VALUES (%s)",
		s.Table, strings.Join(s.Columns, ", "), strings.Join(params, ", "))
	if s.Suffix != "" {
		sb.WriteString(" ")
		sb.WriteString(s.Suffix)
	}
	return sb.String(), nil
}
