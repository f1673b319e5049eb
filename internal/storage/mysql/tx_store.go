package mysql

import (
	"context"
	"database/sql"
	stdErrors "errors"
	"fmt"
	"strings"
	"time"

	"github.com/zer0-os/ZAI/internal/txwatch"
)

// TxStore 使用 MySQL 持久化交易记录，实现 txwatch.Store。
type TxStore struct {
	db *sql.DB
}

// NewTxStore 创建连接池并执行数据库迁移。
func NewTxStore(ctx context.Context, cfg Config) (*TxStore, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	store := &TxStore{db: db}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

const txColumns = `id, tx_hash, kind, chain, from_address, to_address, token_address, amount,
        status, attempts, max_retries, last_error, block_number, gas_used, reverted, created_at, updated_at`

// Create 写入一条新的交易记录。
func (s *TxStore) Create(ctx context.Context, record *txwatch.Record) error {
	if record == nil || record.ID == "" {
		return txwatch.ErrRecordConflict
	}
	now := time.Now().Unix()
	if record.CreatedAt == 0 {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	const stmt = `INSERT INTO transactions
        (id, tx_hash, kind, chain, from_address, to_address, token_address, amount,
         status, attempts, max_retries, last_error, block_number, gas_used, reverted, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, '', 0, 0, ?, ?)`
	_, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.TxHash,
		record.Kind,
		record.Chain,
		record.FromAddress,
		record.ToAddress,
		record.TokenAddress,
		record.Amount,
		string(record.Status),
		record.Attempts,
		record.MaxRetries,
		record.LastError,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return txwatch.ErrRecordConflict
		}
		return fmt.Errorf("写入交易记录失败: %w", err)
	}
	return nil
}

// Get 返回指定记录。
func (s *TxStore) Get(ctx context.Context, id string) (*txwatch.Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+txColumns+` FROM transactions WHERE id = ?`, id)
	record, err := scanRecord(row)
	if err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, txwatch.ErrRecordNotFound
		}
		return nil, err
	}
	return record, nil
}

// Claim 以乐观方式把记录从 pending 推进到 checking。
func (s *TxStore) Claim(ctx context.Context, id string) (*txwatch.Record, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions
         SET status = ?, attempts = attempts + 1, updated_at = ?
         WHERE id = ? AND status = ? AND attempts < max_retries`,
		string(txwatch.StatusChecking), time.Now().Unix(), id, string(txwatch.StatusPending))
	if err != nil {
		return nil, fmt.Errorf("领取交易记录失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("读取领取结果失败: %w", err)
	}

	record, getErr := s.Get(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if affected == 1 {
		return record, nil
	}

	switch record.Status {
	case txwatch.StatusConfirmed:
		return record, txwatch.ErrRecordConfirmed
	case txwatch.StatusChecking:
		return record, txwatch.ErrRecordConflict
	case txwatch.StatusFailed:
		return record, txwatch.ErrRecordExhausted
	}
	// pending 但重试耗尽。
	if _, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(txwatch.StatusFailed), "confirmation retries exhausted", time.Now().Unix(), id); err != nil {
		return record, fmt.Errorf("标记重试耗尽失败: %w", err)
	}
	return record, txwatch.ErrRecordExhausted
}

// MarkConfirmed 记录上链回执。
func (s *TxStore) MarkConfirmed(ctx context.Context, id string, confirmation txwatch.Confirmation) error {
	reverted := 0
	if confirmation.Reverted {
		reverted = 1
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions
         SET status = ?, block_number = ?, gas_used = ?, reverted = ?, last_error = '', updated_at = ?
         WHERE id = ?`,
		string(txwatch.StatusConfirmed), confirmation.BlockNumber, confirmation.GasUsed, reverted, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("标记确认状态失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("读取确认结果失败: %w", err)
	}
	if affected == 0 {
		return txwatch.ErrRecordNotFound
	}
	return nil
}

// MarkFailed 标记确认失败。terminal 为 false 时记录回到待确认状态。
func (s *TxStore) MarkFailed(ctx context.Context, id string, lastError string, terminal bool) error {
	status := txwatch.StatusPending
	if terminal {
		status = txwatch.StatusFailed
	}
	result, err := s.db.ExecContext(ctx,
		`UPDATE transactions SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`,
		string(status), lastError, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("标记失败状态出错: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("读取失败结果出错: %w", err)
	}
	if affected == 0 {
		return txwatch.ErrRecordNotFound
	}
	return nil
}

// List 返回符合过滤条件的记录列表。
func (s *TxStore) List(ctx context.Context, opts txwatch.ListOptions) ([]*txwatch.Record, error) {
	query, args := buildListQuery(`SELECT `+txColumns+` FROM transactions`, opts)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("查询交易记录失败: %w", err)
	}
	defer rows.Close()

	var records []*txwatch.Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历交易记录失败: %w", err)
	}
	return records, nil
}

// Stats 统计符合过滤条件的记录数量与更新时间范围。
func (s *TxStore) Stats(ctx context.Context, opts txwatch.ListOptions) (txwatch.RecordStats, error) {
	where, args := buildWhere(opts)
	query := `SELECT status, COUNT(*), MIN(updated_at), MAX(updated_at) FROM transactions` + where + ` GROUP BY status`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return txwatch.RecordStats{}, fmt.Errorf("统计交易记录失败: %w", err)
	}
	defer rows.Close()

	stats := txwatch.RecordStats{}
	for rows.Next() {
		var (
			status string
			count  int64
			oldest sql.NullInt64
			newest sql.NullInt64
		)
		if err := rows.Scan(&status, &count, &oldest, &newest); err != nil {
			return txwatch.RecordStats{}, fmt.Errorf("解析统计结果失败: %w", err)
		}
		stats.Total += count
		switch txwatch.Status(status) {
		case txwatch.StatusPending:
			stats.Pending += count
		case txwatch.StatusChecking:
			stats.Checking += count
		case txwatch.StatusConfirmed:
			stats.Confirmed += count
		case txwatch.StatusFailed:
			stats.Failed += count
		}
		if newest.Valid && newest.Int64 > stats.NewestUpdatedAt {
			stats.NewestUpdatedAt = newest.Int64
		}
		if oldest.Valid && (stats.OldestUpdatedAt == 0 || oldest.Int64 < stats.OldestUpdatedAt) {
			stats.OldestUpdatedAt = oldest.Int64
		}
	}
	if err := rows.Err(); err != nil {
		return txwatch.RecordStats{}, fmt.Errorf("遍历统计结果失败: %w", err)
	}
	return stats, nil
}

// DB 暴露底层连接池，供消息仓库等组件复用。
func (s *TxStore) DB() *sql.DB {
	return s.db
}

// Close 关闭底层数据库连接。
func (s *TxStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*txwatch.Record, error) {
	var (
		record      txwatch.Record
		status      string
		lastError   sql.NullString
		blockNumber string
		gasUsed     uint64
		reverted    int
	)
	if err := row.Scan(
		&record.ID,
		&record.TxHash,
		&record.Kind,
		&record.Chain,
		&record.FromAddress,
		&record.ToAddress,
		&record.TokenAddress,
		&record.Amount,
		&status,
		&record.Attempts,
		&record.MaxRetries,
		&lastError,
		&blockNumber,
		&gasUsed,
		&reverted,
		&record.CreatedAt,
		&record.UpdatedAt,
	); err != nil {
		if stdErrors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("解析交易记录失败: %w", err)
	}
	record.Status = txwatch.Status(status)
	record.LastError = lastError.String
	if record.Status == txwatch.StatusConfirmed {
		record.Confirmation = &txwatch.Confirmation{
			BlockNumber: blockNumber,
			GasUsed:     gasUsed,
			Reverted:    reverted == 1,
		}
	}
	return &record, nil
}

func buildWhere(opts txwatch.ListOptions) (string, []any) {
	var (
		clauses []string
		args    []any
	)
	if len(opts.Statuses) > 0 {
		placeholders := make([]string, 0, len(opts.Statuses))
		for _, status := range opts.Statuses {
			placeholders = append(placeholders, "?")
			args = append(args, string(status))
		}
		clauses = append(clauses, "status IN ("+strings.Join(placeholders, ",")+")")
	}
	if opts.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, opts.Kind)
	}
	if opts.UpdatedGTE > 0 {
		clauses = append(clauses, "updated_at >= ?")
		args = append(args, opts.UpdatedGTE)
	}
	if len(clauses) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func buildListQuery(base string, opts txwatch.ListOptions) (string, []any) {
	where, args := buildWhere(opts)
	order := " ORDER BY updated_at DESC, id DESC"
	if opts.Order == txwatch.SortByUpdatedAsc {
		order = " ORDER BY updated_at ASC, id ASC"
	}
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	args = append(args, limit)
	return base + where + order + " LIMIT ?", args
}

func isDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "Duplicate entry")
}

// ensure interface compliance at compile time
var _ txwatch.Store = (*TxStore)(nil)
