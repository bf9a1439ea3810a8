package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/domain/dedup"
	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/repository"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/logger"
	"github.com/cloudsaver/cloudsaver/pkg/utils/format"
)

// ReconcileOptions 对账引擎参数
type ReconcileOptions struct {
	Workers               int
	MinFileSizeBytes      int64 // 小于该值的文件不转码，仍参与去重
	TargetQuality         string
	PreserveMetadata      bool
	MinSizeReductionRatio float64
}

// AppReconcileService 对账流水线引擎
// 每次运行：拉清单 -> 建索引 -> 组内裁决 -> 冗余入回收站 ->
// 保留的媒体文件降质替换 -> 写台账
type AppReconcileService struct {
	catalog  contracts.CatalogService
	reducer  contracts.TranscodeService
	ledger   contracts.LedgerStore
	runs     *repository.RunRepository
	notifier contracts.NotificationService
	exporter *ExportService
	opts     ReconcileOptions

	mu     sync.Mutex
	active *entities.ReconcileRun
}

// NewAppReconcileService 创建对账服务
// exporter可以为nil（导出关闭）
func NewAppReconcileService(
	catalog contracts.CatalogService,
	reducer contracts.TranscodeService,
	ledger contracts.LedgerStore,
	runs *repository.RunRepository,
	notifier contracts.NotificationService,
	exporter *ExportService,
	opts ReconcileOptions,
) *AppReconcileService {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	return &AppReconcileService{
		catalog:  catalog,
		reducer:  reducer,
		ledger:   ledger,
		runs:     runs,
		notifier: notifier,
		exporter: exporter,
		opts:     opts,
	}
}

// StartRun 异步启动一次运行
func (s *AppReconcileService) StartRun(ctx context.Context) (*entities.ReconcileRun, error) {
	run, err := s.begin()
	if err != nil {
		return nil, err
	}

	go func() {
		// API请求的上下文随响应结束，后台运行使用独立上下文
		s.execute(context.Background(), run)
	}()

	// 活动对象归引擎独占，对外只给快照
	return run.Clone(), nil
}

// Run 同步执行一次运行
func (s *AppReconcileService) Run(ctx context.Context) (*entities.ReconcileRun, error) {
	run, err := s.begin()
	if err != nil {
		return nil, err
	}
	s.execute(ctx, run)
	return run, nil
}

// GetRun 查询单次运行
func (s *AppReconcileService) GetRun(id string) (*entities.ReconcileRun, error) {
	return s.runs.GetByID(id)
}

// ListRuns 按开始时间倒序列出历史运行
func (s *AppReconcileService) ListRuns(limit int) ([]*entities.ReconcileRun, error) {
	return s.runs.Recent(limit)
}

// begin 占用运行槽位，同一时刻只允许一次运行
func (s *AppReconcileService) begin() (*entities.ReconcileRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, sharederrors.NewServiceError(sharederrors.ErrorCodeConflict,
			"a reconcile run is already in progress: "+s.active.ID)
	}

	run := &entities.ReconcileRun{
		ID:        uuid.New().String(),
		Status:    entities.RunStatusRunning,
		StartedAt: time.Now(),
	}
	s.active = run

	if err := s.runs.Save(run); err != nil {
		s.active = nil
		return nil, err
	}
	return run, nil
}

func (s *AppReconcileService) execute(ctx context.Context, run *entities.ReconcileRun) {
	defer func() {
		s.mu.Lock()
		s.active = nil
		s.mu.Unlock()
	}()

	logger.Info("Reconcile run started", "run_id", run.ID)

	files, err := s.catalog.ListFiles(ctx)
	if err != nil {
		// 目录清单都拿不到，整次运行终止
		s.finish(ctx, run, entities.RunStatusAborted, err)
		return
	}

	run.Summary.FilesExamined = len(files)

	idx := dedup.BuildIndex(files)
	run.Summary.MalformedRecords = len(idx.Malformed)
	for _, m := range idx.Malformed {
		logger.Warn("malformed record excluded from indexing", "file_id", m.ID, "name", m.Name)
	}

	if s.exporter != nil {
		if _, err := s.exporter.ExportListing(files, "remote_files.json", 0); err != nil {
			logger.Error("Failed to export listing", "error", err)
		}
	}

	s.processGroups(ctx, idx, run)

	status := entities.RunStatusCompleted
	if ctx.Err() != nil {
		status = entities.RunStatusCancelled
	}
	s.finish(ctx, run, status, nil)
}

// processGroups 工作池并发处理相互独立的文件组
func (s *AppReconcileService) processGroups(ctx context.Context, idx *dedup.Index, run *entities.ReconcileRun) {
	jobs := make(chan *dedup.Group)
	var sumMu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < s.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for g := range jobs {
				s.processGroup(ctx, g, run, &sumMu)
			}
		}()
	}

feed:
	for _, g := range idx.Groups {
		select {
		case jobs <- g:
		case <-ctx.Done():
			// 取消后不再派发新组，在途的组做完当前远端调用后自行退出
			break feed
		}
	}
	close(jobs)
	wg.Wait()
}

func (s *AppReconcileService) processGroup(ctx context.Context, g *dedup.Group, run *entities.ReconcileRun, sumMu *sync.Mutex) {
	p := dedup.Resolve(g)

	if p.Collision {
		logger.Warn("fingerprint collision, keeping all records",
			"name", g.Fingerprint.Name, "size", g.Fingerprint.Size, "records", len(g.Records))
		sumMu.Lock()
		run.Summary.Collisions++
		sumMu.Unlock()
	}

	if len(p.Redundant) > 0 {
		sumMu.Lock()
		run.Summary.DuplicateGroups++
		sumMu.Unlock()
	}

	// 冗余记录逐条入回收站，单条失败不影响其它记录
	for _, r := range p.Redundant {
		if ctx.Err() != nil {
			return
		}
		s.trashRedundant(ctx, r, run, sumMu)
	}

	for _, keep := range p.Keeps {
		if ctx.Err() != nil {
			return
		}
		s.maybeTranscode(ctx, keep, run, sumMu)
	}
}

func (s *AppReconcileService) trashRedundant(ctx context.Context, r entities.RemoteFile, run *entities.ReconcileRun, sumMu *sync.Mutex) {
	err := s.catalog.MoveToTrash(ctx, r.ID)
	if err != nil && sharederrors.IsCode(err, sharederrors.ErrorCodeNotFound) {
		// 远端已经不存在，视为目标状态已达成
		logger.Info("redundant record already gone", "file_id", r.ID, "name", r.Name)
		err = nil
	}

	sumMu.Lock()
	defer sumMu.Unlock()

	if err != nil {
		logger.Error("Failed to trash redundant record", "file_id", r.ID, "name", r.Name, "error", err)
		run.Summary.Failures = append(run.Summary.Failures, entities.FileFailure{
			FileID: r.ID,
			Name:   r.Name,
			Stage:  entities.FileStateTrashing,
			Reason: string(sharederrors.ErrorCodeTrashFailed) + ": " + err.Error(),
		})
		return
	}

	run.Summary.DuplicatesTrashed++
	run.Summary.BytesSaved += r.Size
	logger.Info("redundant record trashed", "file_id", r.ID, "name", r.Name, "size", r.Size)
}

// maybeTranscode 保留记录的降质替换路径
// 任何失败都保持原件不动；台账只在替换确认落盘后写入
func (s *AppReconcileService) maybeTranscode(ctx context.Context, keep entities.RemoteFile, run *entities.ReconcileRun, sumMu *sync.Mutex) {
	skip := func() {
		sumMu.Lock()
		run.Summary.FilesSkipped++
		sumMu.Unlock()
	}

	if !keep.IsMedia() {
		skip()
		return
	}
	if s.opts.MinFileSizeBytes > 0 && keep.Size < s.opts.MinFileSizeBytes {
		skip()
		return
	}

	if entry, ok, err := s.ledger.Get(keep.ID); err != nil {
		logger.Error("ledger lookup failed", "file_id", keep.ID, "error", err)
		skip()
		return
	} else if ok && entry.Matches(keep) {
		// 已处理且远端未变化，不重复转码
		skip()
		return
	}

	source, err := s.catalog.Download(ctx, keep.ID)
	if err != nil {
		s.recordFailure(run, sumMu, keep, entities.FileStateTranscoding, err)
		return
	}
	defer source.Close()

	result, err := s.reducer.Reduce(ctx, contracts.ReduceRequest{
		Source:                source,
		SourceSize:            keep.Size,
		Filename:              keep.Name,
		MimeType:              keep.MimeType,
		MediaType:             keep.MediaType,
		TargetQuality:         s.opts.TargetQuality,
		PreserveMetadata:      s.opts.PreserveMetadata,
		MinSizeReductionRatio: s.opts.MinSizeReductionRatio,
	})
	if err != nil {
		// 转码失败和收益不足都不致命，原件保持不动
		s.recordFailure(run, sumMu, keep, entities.FileStateTranscoding, err)
		return
	}
	defer result.Payload.Close()

	if ctx.Err() != nil {
		return
	}

	// 先上传新产物并等远端确认，再移走原件，任何时刻至少存在一份完整副本。
	// 替换窗口内不响应取消：上传中途被掐断会在远端留下半截孤儿副本，
	// 取消只在远端调用之间生效
	opCtx := context.WithoutCancel(ctx)
	replacement, err := s.catalog.Upload(opCtx, keep.Name, keep.MimeType, result.Payload, result.Size)
	if err != nil {
		s.recordFailure(run, sumMu, keep, entities.FileStateReplacing,
			sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeUploadFailed, "replacement upload failed", err))
		return
	}

	if err := s.catalog.MoveToTrash(opCtx, keep.ID); err != nil {
		// 新旧两份并存，下次运行继续收敛；不写台账
		s.recordFailure(run, sumMu, keep, entities.FileStateReplacing,
			sharederrors.NewServiceErrorWithCause(sharederrors.ErrorCodeTrashFailed, "original not trashed after replacement", err))
		return
	}

	entry := entities.LedgerEntry{
		FileID:       replacement.ID,
		Checksum:     replacement.MD5Checksum,
		Size:         replacement.Size,
		ModifiedAt:   replacement.ModifiedAt,
		QualityLevel: s.opts.TargetQuality,
		ProcessedAt:  time.Now(),
	}
	if err := s.ledger.Upsert(entry); err != nil {
		// 替换已经完成，台账写失败只会导致下次的多余转码
		logger.Error("ledger upsert failed", "file_id", replacement.ID, "error", err)
	}

	sumMu.Lock()
	run.Summary.FilesTranscoded++
	run.Summary.BytesSaved += keep.Size - result.Size
	sumMu.Unlock()

	logger.Info("file replaced with reduced version",
		"old_id", keep.ID, "new_id", replacement.ID, "name", keep.Name,
		"old_size", keep.Size, "new_size", result.Size)
}

func (s *AppReconcileService) recordFailure(run *entities.ReconcileRun, sumMu *sync.Mutex, f entities.RemoteFile, stage entities.FileState, err error) {
	logger.Error("file processing failed", "file_id", f.ID, "name", f.Name, "stage", string(stage), "error", err)

	sumMu.Lock()
	defer sumMu.Unlock()
	run.Summary.Failures = append(run.Summary.Failures, entities.FileFailure{
		FileID: f.ID,
		Name:   f.Name,
		Stage:  stage,
		Reason: err.Error(),
	})
}

// finish 收尾：落盘运行记录、导出汇总、推送通知
// 无论成功与否都会产出汇总
func (s *AppReconcileService) finish(ctx context.Context, run *entities.ReconcileRun, status entities.RunStatus, runErr error) {
	now := time.Now()
	run.Status = status
	run.FinishedAt = &now
	if runErr != nil {
		run.Error = runErr.Error()
	}
	run.Summary.BytesSavedReadable = format.HumanSize(run.Summary.BytesSaved)

	if err := s.runs.Save(run); err != nil {
		logger.Error("Failed to persist run", "run_id", run.ID, "error", err)
	}

	if s.exporter != nil && status != entities.RunStatusAborted {
		if _, err := s.exporter.ExportRun(run); err != nil {
			logger.Error("Failed to export run summary", "run_id", run.ID, "error", err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyRunFinished(context.WithoutCancel(ctx), run); err != nil {
			logger.Error("Failed to send run notification", "run_id", run.ID, "error", err)
		}
	}

	logger.Info("Reconcile run finished",
		"run_id", run.ID,
		"status", string(status),
		"examined", run.Summary.FilesExamined,
		"trashed", run.Summary.DuplicatesTrashed,
		"transcoded", run.Summary.FilesTranscoded,
		"bytes_saved", run.Summary.BytesSavedReadable,
		"failures", len(run.Summary.Failures))
}
