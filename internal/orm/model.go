package orm

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/minorm/internal/database"
	"github.com/koustreak/minorm/internal/errs"
	"github.com/koustreak/minorm/internal/logger"
)

// Executor runs canonical statements. *database.Pool implements it.
type Executor interface {
	Select(ctx context.Context, query string, args []any, limit int) ([]database.Row, error)
	Execute(ctx context.Context, query string, args []any) (int64, error)
}

// Find returns the record whose primary key equals pk, or nil when no
// row matches. A missing row is not an error.
func (t *Table) Find(ctx context.Context, ex Executor, pk any) (*Record, error) {
	query := fmt.Sprintf("%s where %s=?", t.SelectSQL, t.quotedColumn(t.PrimaryKey))

	rows, err := ex.Select(ctx, query, []any{pk}, 1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return hydrate(t, rows[0]), nil
}

// FindAll returns every record matching filter. Filter columns are
// column names; a nil filter selects the whole table.
func (t *Table) FindAll(ctx context.Context, ex Executor, filter *database.Filter) ([]*Record, error) {
	clause, args, err := filter.Build()
	if err != nil {
		return nil, err
	}

	rows, err := ex.Select(ctx, t.SelectSQL+clause, args, 0)
	if err != nil {
		return nil, err
	}

	out := make([]*Record, len(rows))
	for i, row := range rows {
		out[i] = hydrate(t, row)
	}
	return out, nil
}

// Count returns the number of rows matching the where conditions of
// filter. Ordering and paging in filter are ignored.
func (t *Table) Count(ctx context.Context, ex Executor, filter *database.Filter) (int64, error) {
	clause, args, err := filter.WhereOnly().Build()
	if err != nil {
		return 0, err
	}

	query := fmt.Sprintf("select count(%s) from %s%s",
		t.quotedColumn(t.PrimaryKey), database.QuoteIdent(t.Name), clause)
	rows, err := ex.Select(ctx, query, args, 1)
	if err != nil {
		return 0, err
	}
	if len(rows) == 0 || len(rows[0].Values) == 0 {
		return 0, errs.New(errs.ErrKindQueryFailed, "count returned no rows")
	}

	n, ok := toInt64(rows[0].Values[0])
	if !ok {
		return 0, errs.Newf(errs.ErrKindQueryFailed, "count returned %T", rows[0].Values[0])
	}
	return n, nil
}

// Save inserts the record. Unset fields take their defaults, which are
// stored back on the record.
func (r *Record) Save(ctx context.Context, ex Executor) error {
	return r.expectOne(ctx, "insert", ex, r.table.InsertSQL, r.insertArgs())
}

// Update writes every non-key field of the record to the row with its
// primary key.
func (r *Record) Update(ctx context.Context, ex Executor) error {
	return r.expectOne(ctx, "update", ex, r.table.UpdateSQL, r.updateArgs())
}

// Remove deletes the row with the record's primary key.
func (r *Record) Remove(ctx context.Context, ex Executor) error {
	return r.expectOne(ctx, "remove", ex, r.table.DeleteSQL, []any{r.PrimaryKey()})
}

// expectOne executes a single-row statement. Any affected count other
// than one is logged and returned as a row_count error.
func (r *Record) expectOne(ctx context.Context, op string, ex Executor, query string, args []any) error {
	n, err := ex.Execute(ctx, query, args)
	if err != nil {
		return err
	}
	if n != 1 {
		logger.FromContext(ctx).Warnf("failed to %s record: affected rows: %d", op, n)
		return errs.Newf(errs.ErrKindRowCount, "%s %s: expected 1 affected row, got %d", op, r.table.Model, n)
	}
	return nil
}

// Verify checks the mapping against the live table: every mapped column
// must exist and the live primary key must be the mapped one.
func (t *Table) Verify(ctx context.Context, in database.Introspector) error {
	cols, err := in.Columns(ctx, t.Name)
	if err != nil {
		return err
	}
	if len(cols) == 0 {
		return errs.Newf(errs.ErrKindSchema, "table %s does not exist", t.Name)
	}

	live := make(map[string]database.ColumnInfo, len(cols))
	for _, c := range cols {
		live[c.Name] = c
	}

	var missing []string
	for _, attr := range t.Attributes() {
		if _, ok := live[t.Column(attr)]; !ok {
			missing = append(missing, t.Column(attr))
		}
	}
	if len(missing) > 0 {
		return errs.Newf(errs.ErrKindSchema, "table %s is missing columns: %s", t.Name, strings.Join(missing, ", "))
	}

	pk := t.Column(t.PrimaryKey)
	if !live[pk].IsPrimary {
		return errs.Newf(errs.ErrKindSchema, "table %s: column %s is not the primary key", t.Name, pk)
	}
	return nil
}
