package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
)

// LedgerRepository 文件台账，JSON文件持久化
// 单写者纪律：Upsert在互斥锁内完成内存更新与落盘
type LedgerRepository struct {
	filePath string
	mu       sync.RWMutex
	entries  map[string]entities.LedgerEntry
}

// NewLedgerRepository 创建台账仓库并加载既有数据
func NewLedgerRepository(dataDir string) (*LedgerRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &LedgerRepository{
		filePath: filepath.Join(dataDir, "processed_ledger.json"),
		entries:  make(map[string]entities.LedgerEntry),
	}

	if err := repo.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load ledger: %w", err)
	}

	return repo, nil
}

// load 从文件加载台账
func (r *LedgerRepository) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var entries []entities.LedgerEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries = make(map[string]entities.LedgerEntry, len(entries))
	for _, e := range entries {
		r.entries[e.FileID] = e
	}

	return nil
}

// saveUnlocked 落盘（调用时必须已经持有锁）
// 先写临时文件再rename，进程中途退出不会留下半截台账
func (r *LedgerRepository) saveUnlocked() error {
	entries := make([]entities.LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.filePath)
}

// Get 按远端文件ID查询台账条目
func (r *LedgerRepository) Get(id string) (entities.LedgerEntry, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	e, ok := r.entries[id]
	return e, ok, nil
}

// Upsert 原子写入或更新条目
func (r *LedgerRepository) Upsert(entry entities.LedgerEntry) error {
	if entry.FileID == "" {
		return fmt.Errorf("ledger entry has no file id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[entry.FileID] = entry
	return r.saveUnlocked()
}

// All 返回全部台账条目
func (r *LedgerRepository) All() ([]entities.LedgerEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]entities.LedgerEntry, 0, len(r.entries))
	for _, e := range r.entries {
		entries = append(entries, e)
	}
	return entries, nil
}
