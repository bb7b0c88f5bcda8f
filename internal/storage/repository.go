package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"budget/internal/core"
	"budget/internal/services"

	_ "modernc.org/sqlite"
)

// ErrCategoryInUse is returned when deleting a category that transactions
// still reference.
var ErrCategoryInUse = core.ErrCategoryInUse

// SQLiteRepository persists limits, transactions and categories. It satisfies
// the services store contracts.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// --- Limits ---

func (r *SQLiteRepository) ListCurrentAndFutureLimits(ctx context.Context, _ core.Date) ([]core.Limit, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, amount_cents, period, start_date, end_date, auto_renew
		 FROM limits ORDER BY start_date ASC`)
	if err != nil {
		return nil, fmt.Errorf("query limits: %w", err)
	}
	defer rows.Close()

	var limits []core.Limit
	for rows.Next() {
		l, err := scanLimit(rows)
		if err != nil {
			return nil, err
		}
		limits = append(limits, l)
	}
	return limits, rows.Err()
}

func (r *SQLiteRepository) SaveLimit(ctx context.Context, l *core.Limit) error {
	endDate := sql.NullString{}
	if !l.EndDate.IsZero() {
		endDate = sql.NullString{String: l.EndDate.String(), Valid: true}
	}

	if l.ID == 0 {
		res, err := r.db.ExecContext(ctx,
			`INSERT INTO limits (amount_cents, period, start_date, end_date, auto_renew)
			 VALUES (?, ?, ?, ?, ?)`,
			l.Amount.Cents, string(l.Period), l.StartDate.String(), endDate, boolToInt(l.AutoRenew))
		if err != nil {
			return fmt.Errorf("insert limit: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("limit insert id: %w", err)
		}
		l.ID = id
		return nil
	}

	_, err := r.db.ExecContext(ctx,
		`UPDATE limits SET amount_cents = ?, period = ?, start_date = ?, end_date = ?, auto_renew = ?
		 WHERE id = ?`,
		l.Amount.Cents, string(l.Period), l.StartDate.String(), endDate, boolToInt(l.AutoRenew), l.ID)
	if err != nil {
		return fmt.Errorf("update limit: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) DeleteLimit(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM limits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete limit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func scanLimit(rows *sql.Rows) (core.Limit, error) {
	var (
		l         core.Limit
		period    string
		start     string
		end       sql.NullString
		autoRenew int64
	)
	if err := rows.Scan(&l.ID, &l.Amount.Cents, &period, &start, &end, &autoRenew); err != nil {
		return core.Limit{}, fmt.Errorf("scan limit: %w", err)
	}
	l.Period = core.Period(period)
	l.AutoRenew = autoRenew != 0

	startDate, err := core.ParseDate(start)
	if err != nil {
		return core.Limit{}, fmt.Errorf("limit %d start date: %w", l.ID, err)
	}
	l.StartDate = startDate

	if end.Valid {
		endDate, err := core.ParseDate(end.String)
		if err != nil {
			return core.Limit{}, fmt.Errorf("limit %d end date: %w", l.ID, err)
		}
		l.EndDate = endDate
	}
	return l, nil
}

// --- Transactions ---

func (r *SQLiteRepository) AddTransaction(ctx context.Context, t *core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (date, amount_cents, type, category, description)
		 VALUES (?, ?, ?, ?, ?)`,
		t.Date.String(), t.Amount.Cents, string(t.Type), t.Category, t.Description)
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("transaction insert id: %w", err)
	}
	t.ID = id
	return nil
}

func (r *SQLiteRepository) GetTransaction(ctx context.Context, id int64) (*core.Transaction, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, date, amount_cents, type, category, description
		 FROM transactions WHERE id = ?`, id)

	t, err := scanTransactionRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *SQLiteRepository) ListTransactions(ctx context.Context, f services.TransactionFilter) ([]core.Transaction, error) {
	query := `SELECT id, date, amount_cents, type, category, description FROM transactions`
	var (
		conds []string
		args  []any
	)
	if !f.From.IsZero() {
		conds = append(conds, "date >= ?")
		args = append(args, f.From.String())
	}
	if !f.To.IsZero() {
		conds = append(conds, "date <= ?")
		args = append(args, f.To.String())
	}
	if f.Category != "" {
		conds = append(conds, "category = ?")
		args = append(args, f.Category)
	}
	if f.Type != "" {
		conds = append(conds, "type = ?")
		args = append(args, string(f.Type))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY date DESC, id DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []core.Transaction
	for rows.Next() {
		var (
			t    core.Transaction
			date string
			typ  string
		)
		if err := rows.Scan(&t.ID, &date, &t.Amount.Cents, &typ, &t.Category, &t.Description); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		d, err := core.ParseDate(date)
		if err != nil {
			return nil, fmt.Errorf("transaction %d date: %w", t.ID, err)
		}
		t.Date = d
		t.Type = core.TransactionType(typ)
		transactions = append(transactions, t)
	}
	return transactions, rows.Err()
}

func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (r *SQLiteRepository) SumExpenses(ctx context.Context, from, to core.Date) (core.Money, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents), 0) FROM transactions
		 WHERE type = ? AND date >= ? AND date <= ?`,
		string(core.Expense), from.String(), to.String()).Scan(&total)
	if err != nil {
		return core.Money{}, fmt.Errorf("sum expenses: %w", err)
	}
	return core.Money{Cents: total}, nil
}

func scanTransactionRow(row *sql.Row) (*core.Transaction, error) {
	var (
		t    core.Transaction
		date string
		typ  string
	)
	if err := row.Scan(&t.ID, &date, &t.Amount.Cents, &typ, &t.Category, &t.Description); err != nil {
		return nil, err
	}
	d, err := core.ParseDate(date)
	if err != nil {
		return nil, fmt.Errorf("transaction %d date: %w", t.ID, err)
	}
	t.Date = d
	t.Type = core.TransactionType(typ)
	return &t, nil
}

// --- Categories ---

func (r *SQLiteRepository) CreateCategory(ctx context.Context, c *core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (name, default_type) VALUES (?, ?)`,
		c.Name, string(c.DefaultType))
	if err != nil {
		return fmt.Errorf("insert category: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("category insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *SQLiteRepository) GetCategory(ctx context.Context, id int64) (*core.Category, error) {
	return r.getCategory(ctx, `SELECT id, name, default_type FROM categories WHERE id = ?`, id)
}

func (r *SQLiteRepository) GetCategoryByName(ctx context.Context, name string) (*core.Category, error) {
	return r.getCategory(ctx, `SELECT id, name, default_type FROM categories WHERE name = ?`, name)
}

func (r *SQLiteRepository) getCategory(ctx context.Context, query string, arg any) (*core.Category, error) {
	var (
		c   core.Category
		typ string
	)
	err := r.db.QueryRowContext(ctx, query, arg).Scan(&c.ID, &c.Name, &typ)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query category: %w", err)
	}
	c.DefaultType = core.TransactionType(typ)
	return &c, nil
}

func (r *SQLiteRepository) ListCategories(ctx context.Context) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, default_type FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var categories []core.Category
	for rows.Next() {
		var (
			c   core.Category
			typ string
		)
		if err := rows.Scan(&c.ID, &c.Name, &typ); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		c.DefaultType = core.TransactionType(typ)
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// UpdateCategory renames a category and rewrites the name on transactions that
// reference it, in a single database transaction.
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c *core.Category) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var oldName string
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, c.ID).Scan(&oldName)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("load category: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE categories SET name = ?, default_type = ? WHERE id = ?`,
		c.Name, string(c.DefaultType), c.ID); err != nil {
		return fmt.Errorf("update category: %w", err)
	}

	if oldName != c.Name {
		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET category = ? WHERE category = ?`,
			c.Name, oldName); err != nil {
			return fmt.Errorf("rename transaction categories: %w", err)
		}
	}

	return tx.Commit()
}

func (r *SQLiteRepository) DeleteCategory(ctx context.Context, id int64) error {
	c, err := r.GetCategory(ctx, id)
	if err != nil {
		return err
	}

	var inUse int64
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM transactions WHERE category = ?`, c.Name).Scan(&inUse); err != nil {
		return fmt.Errorf("count category usage: %w", err)
	}
	if inUse > 0 {
		slog.Warn("Refusing to delete category in use", "id", id, "name", c.Name, "transactions", inUse)
		return ErrCategoryInUse
	}

	if _, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
