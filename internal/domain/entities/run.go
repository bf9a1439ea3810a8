package entities

import "time"

// RunStatus 运行状态枚举
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed" // 可能带有单文件失败
	RunStatusAborted   RunStatus = "aborted"   // 认证或列表失败导致整次运行终止
	RunStatusCancelled RunStatus = "cancelled"
)

// FileFailure 单个文件的失败记录
type FileFailure struct {
	FileID string    `json:"file_id"`
	Name   string    `json:"name"`
	Stage  FileState `json:"stage"`
	Reason string    `json:"reason"`
}

// RunSummary 运行结果汇总，部分失败时同样产出
type RunSummary struct {
	FilesExamined      int           `json:"files_examined"`
	MalformedRecords   int           `json:"malformed_records"`
	DuplicateGroups    int           `json:"duplicate_groups"`
	DuplicatesTrashed  int           `json:"duplicates_trashed"`
	Collisions         int           `json:"fingerprint_collisions"`
	FilesTranscoded    int           `json:"files_transcoded"`
	FilesSkipped       int           `json:"files_skipped"`
	BytesSaved         int64         `json:"bytes_saved"`
	BytesSavedReadable string        `json:"bytes_saved_readable"`
	Failures           []FileFailure `json:"failures,omitempty"`
}

// ReconcileRun 一次对账运行
type ReconcileRun struct {
	ID         string     `json:"id"`
	Status     RunStatus  `json:"status"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Error      string     `json:"error,omitempty"`
	Summary    RunSummary `json:"summary"`
}

// Clone 深拷贝运行记录
// 引擎在运行期间持续修改自己手里的对象，对外只能暴露副本
func (r *ReconcileRun) Clone() *ReconcileRun {
	cp := *r
	if r.FinishedAt != nil {
		t := *r.FinishedAt
		cp.FinishedAt = &t
	}
	if len(r.Summary.Failures) > 0 {
		cp.Summary.Failures = append([]FileFailure(nil), r.Summary.Failures...)
	}
	return &cp
}
