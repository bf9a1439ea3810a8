package repository

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
)

// MySQLLedgerRepository 台账的MySQL实现，多实例部署时替代本地文件
type MySQLLedgerRepository struct {
	db *sql.DB
}

const createLedgerTable = `
CREATE TABLE IF NOT EXISTS processed_ledger (
	file_id       VARCHAR(128) PRIMARY KEY,
	checksum      VARCHAR(64)  NOT NULL DEFAULT '',
	size          BIGINT       NOT NULL,
	modified_at   DATETIME(6)  NOT NULL,
	quality_level VARCHAR(32)  NOT NULL,
	processed_at  DATETIME(6)  NOT NULL
)`

// NewMySQLLedgerRepository 连接MySQL并确保表存在
func NewMySQLLedgerRepository(dsn string) (*MySQLLedgerRepository, error) {
	dsn, err := normalizeDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping mysql: %w", err)
	}

	if _, err := db.Exec(createLedgerTable); err != nil {
		return nil, fmt.Errorf("failed to create ledger table: %w", err)
	}

	return &MySQLLedgerRepository{db: db}, nil
}

// normalizeDSN 校验DSN并强制parseTime=true
// DATETIME列要扫描进time.Time必须开启parseTime，漏配时首次Get才会报错，
// 提前在连接阶段补上
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// Get 按远端文件ID查询台账条目
func (r *MySQLLedgerRepository) Get(id string) (entities.LedgerEntry, bool, error) {
	var e entities.LedgerEntry
	row := r.db.QueryRow(
		"SELECT file_id, checksum, size, modified_at, quality_level, processed_at FROM processed_ledger WHERE file_id = ?", id)

	err := row.Scan(&e.FileID, &e.Checksum, &e.Size, &e.ModifiedAt, &e.QualityLevel, &e.ProcessedAt)
	if err == sql.ErrNoRows {
		return entities.LedgerEntry{}, false, nil
	}
	if err != nil {
		return entities.LedgerEntry{}, false, fmt.Errorf("failed to query ledger: %w", err)
	}
	return e, true, nil
}

// Upsert 原子写入或更新条目，依赖主键的ON DUPLICATE KEY语义串行化并发写
func (r *MySQLLedgerRepository) Upsert(entry entities.LedgerEntry) error {
	if entry.FileID == "" {
		return fmt.Errorf("ledger entry has no file id")
	}

	_, err := r.db.Exec(`
		INSERT INTO processed_ledger (file_id, checksum, size, modified_at, quality_level, processed_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			checksum = VALUES(checksum),
			size = VALUES(size),
			modified_at = VALUES(modified_at),
			quality_level = VALUES(quality_level),
			processed_at = VALUES(processed_at)`,
		entry.FileID, entry.Checksum, entry.Size, entry.ModifiedAt, entry.QualityLevel, entry.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert ledger entry: %w", err)
	}
	return nil
}

// All 返回全部台账条目
func (r *MySQLLedgerRepository) All() ([]entities.LedgerEntry, error) {
	rows, err := r.db.Query(
		"SELECT file_id, checksum, size, modified_at, quality_level, processed_at FROM processed_ledger")
	if err != nil {
		return nil, fmt.Errorf("failed to query ledger: %w", err)
	}
	defer rows.Close()

	var entries []entities.LedgerEntry
	for rows.Next() {
		var e entities.LedgerEntry
		if err := rows.Scan(&e.FileID, &e.Checksum, &e.Size, &e.ModifiedAt, &e.QualityLevel, &e.ProcessedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close 释放数据库连接
func (r *MySQLLedgerRepository) Close() error {
	return r.db.Close()
}
