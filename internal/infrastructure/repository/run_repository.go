package repository

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
)

// RunRepository 历史运行记录，JSON文件持久化
type RunRepository struct {
	filePath string
	mu       sync.RWMutex
	runs     map[string]*entities.ReconcileRun
}

// NewRunRepository 创建运行记录仓库并加载既有数据
func NewRunRepository(dataDir string) (*RunRepository, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	repo := &RunRepository{
		filePath: filepath.Join(dataDir, "reconcile_runs.json"),
		runs:     make(map[string]*entities.ReconcileRun),
	}

	if err := repo.load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load runs: %w", err)
	}

	return repo, nil
}

func (r *RunRepository) load() error {
	data, err := os.ReadFile(r.filePath)
	if err != nil {
		return err
	}

	var runs []*entities.ReconcileRun
	if err := json.Unmarshal(data, &runs); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs = make(map[string]*entities.ReconcileRun, len(runs))
	for _, run := range runs {
		r.runs[run.ID] = run
	}
	return nil
}

// saveUnlocked 落盘（调用时必须已经持有锁）
func (r *RunRepository) saveUnlocked() error {
	runs := make([]*entities.ReconcileRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run)
	}

	data, err := json.MarshalIndent(runs, "", "  ")
	if err != nil {
		return err
	}

	tmp := r.filePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, r.filePath)
}

// Save 写入或更新运行记录
// 存入的是副本：调用方（引擎）之后对原对象的修改不影响已落盘的状态
func (r *RunRepository) Save(run *entities.ReconcileRun) error {
	if run.ID == "" {
		return fmt.Errorf("run has no id")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run.Clone()
	return r.saveUnlocked()
}

// GetByID 按ID查询运行记录，返回副本
func (r *RunRepository) GetByID(id string) (*entities.ReconcileRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, fmt.Errorf("run not found: %s", id)
	}
	return run.Clone(), nil
}

// Recent 按开始时间倒序返回最近limit条记录
func (r *RunRepository) Recent(limit int) ([]*entities.ReconcileRun, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	runs := make([]*entities.ReconcileRun, 0, len(r.runs))
	for _, run := range r.runs {
		runs = append(runs, run.Clone())
	}

	sort.Slice(runs, func(i, j int) bool {
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})

	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}
