package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudsaver/cloudsaver/internal/application/contracts"
	"github.com/cloudsaver/cloudsaver/internal/domain/entities"
	"github.com/cloudsaver/cloudsaver/internal/infrastructure/repository"
	sharederrors "github.com/cloudsaver/cloudsaver/internal/shared/errors"
	"github.com/cloudsaver/cloudsaver/pkg/utils/media"
)

type fakeCatalog struct {
	mu         sync.Mutex
	files      []entities.RemoteFile
	trashed    map[string]bool
	uploads    []entities.RemoteFile
	nextID     int
	listErr    error
	uploadErr  error
	trashErr   map[string]error
	trashDelay time.Duration
	onUpload   func()
}

func newFakeCatalog(files ...entities.RemoteFile) *fakeCatalog {
	return &fakeCatalog{
		files:    files,
		trashed:  make(map[string]bool),
		trashErr: make(map[string]error),
	}
}

func (c *fakeCatalog) ListFiles(ctx context.Context) ([]entities.RemoteFile, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.listErr != nil {
		return nil, c.listErr
	}
	out := make([]entities.RemoteFile, len(c.files))
	for i, f := range c.files {
		f.Trashed = c.trashed[f.ID]
		out[i] = f
	}
	return out, nil
}

func (c *fakeCatalog) MoveToTrash(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c.trashDelay > 0 {
		time.Sleep(c.trashDelay)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.trashErr[id]; err != nil {
		return err
	}
	for _, f := range c.files {
		if f.ID == id {
			c.trashed[id] = true
			return nil
		}
	}
	return sharederrors.NewServiceError(sharederrors.ErrorCodeNotFound, "no such file: "+id)
}

func (c *fakeCatalog) Download(ctx context.Context, id string) (io.ReadCloser, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, f := range c.files {
		if f.ID == id {
			return io.NopCloser(bytes.NewReader(make([]byte, f.Size))), nil
		}
	}
	return nil, sharederrors.NewServiceError(sharederrors.ErrorCodeNotFound, "no such file: "+id)
}

func (c *fakeCatalog) Upload(ctx context.Context, name, mimeType string, r io.Reader, size int64) (entities.RemoteFile, error) {
	if c.onUpload != nil {
		c.onUpload()
	}
	if err := ctx.Err(); err != nil {
		return entities.RemoteFile{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.uploadErr != nil {
		return entities.RemoteFile{}, c.uploadErr
	}
	if _, err := io.Copy(io.Discard, r); err != nil {
		return entities.RemoteFile{}, err
	}

	c.nextID++
	f := entities.RemoteFile{
		ID:          fmt.Sprintf("new-%d", c.nextID),
		Name:        name,
		Size:        size,
		MD5Checksum: fmt.Sprintf("sum-new-%d", c.nextID),
		MimeType:    mimeType,
		MediaType:   media.Classify(mimeType, name),
		CreatedAt:   time.Now(),
		ModifiedAt:  time.Now(),
	}
	c.files = append(c.files, f)
	c.uploads = append(c.uploads, f)
	return f, nil
}

func (c *fakeCatalog) isTrashed(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.trashed[id]
}

type fakeReducer struct {
	mu      sync.Mutex
	outSize int64
	err     error
	calls   int
}

func (r *fakeReducer) Reduce(ctx context.Context, req contracts.ReduceRequest) (*contracts.ReduceResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return &contracts.ReduceResult{
		Payload: io.NopCloser(bytes.NewReader(make([]byte, r.outSize))),
		Size:    r.outSize,
	}, nil
}

func (r *fakeReducer) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newTestEngine(t *testing.T, catalog contracts.CatalogService, reducer contracts.TranscodeService, opts ReconcileOptions) (*AppReconcileService, contracts.LedgerStore) {
	t.Helper()

	ledger, err := repository.NewLedgerRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	runs, err := repository.NewRunRepository(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if opts.Workers == 0 {
		opts.Workers = 2
	}
	if opts.TargetQuality == "" {
		opts.TargetQuality = "medium"
	}

	svc := NewAppReconcileService(catalog, reducer, ledger, runs, NewDisabledNotificationService(), nil, opts)
	return svc, ledger
}

func mediaFile(id, name string, size int64, created time.Time) entities.RemoteFile {
	return entities.RemoteFile{
		ID:          id,
		Name:        name,
		Size:        size,
		MimeType:    "image/jpeg",
		MediaType:   media.TypeImage,
		CreatedAt:   created,
		ModifiedAt:  created,
		MD5Checksum: "sum-" + id,
	}
}

func TestRunOldestDuplicateSurvives(t *testing.T) {
	ts1 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	ts2 := ts1.Add(time.Hour)

	a := entities.RemoteFile{ID: "A", Name: "x.bin", Size: 100, CreatedAt: ts1, MD5Checksum: "s1"}
	b := entities.RemoteFile{ID: "B", Name: "x.bin", Size: 100, CreatedAt: ts2, MD5Checksum: "s1"}
	catalog := newFakeCatalog(a, b)

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != entities.RunStatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if catalog.isTrashed("A") {
		t.Error("oldest record A must survive")
	}
	if !catalog.isTrashed("B") {
		t.Error("newer record B must be trashed")
	}
	if run.Summary.DuplicatesTrashed != 1 {
		t.Errorf("DuplicatesTrashed = %d", run.Summary.DuplicatesTrashed)
	}
	if run.Summary.BytesSaved != 100 {
		t.Errorf("BytesSaved = %d", run.Summary.BytesSaved)
	}
}

func TestRunChecksumCollisionKeepsAll(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := entities.RemoteFile{ID: "A", Name: "x.bin", Size: 100, CreatedAt: ts, MD5Checksum: "aaa"}
	b := entities.RemoteFile{ID: "B", Name: "x.bin", Size: 100, CreatedAt: ts.Add(time.Hour), MD5Checksum: "bbb"}
	catalog := newFakeCatalog(a, b)

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if catalog.isTrashed("A") || catalog.isTrashed("B") {
		t.Error("collision group must keep all records")
	}
	if run.Summary.Collisions != 1 {
		t.Errorf("Collisions = %d", run.Summary.Collisions)
	}
	if run.Summary.DuplicatesTrashed != 0 {
		t.Errorf("DuplicatesTrashed = %d", run.Summary.DuplicatesTrashed)
	}
}

func TestRunTranscodeReplace(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(mediaFile("A", "photo.jpg", 100, ts))
	reducer := &fakeReducer{outSize: 60}

	svc, ledger := newTestEngine(t, catalog, reducer, ReconcileOptions{MinSizeReductionRatio: 0.3})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != entities.RunStatusCompleted {
		t.Fatalf("status = %s, error = %s", run.Status, run.Error)
	}
	if run.Summary.FilesTranscoded != 1 {
		t.Fatalf("FilesTranscoded = %d, failures: %+v", run.Summary.FilesTranscoded, run.Summary.Failures)
	}
	if run.Summary.BytesSaved != 40 {
		t.Errorf("BytesSaved = %d", run.Summary.BytesSaved)
	}

	// 原件替换后移入回收站，新副本留在远端
	if !catalog.isTrashed("A") {
		t.Error("original must be trashed after replacement")
	}
	if len(catalog.uploads) != 1 {
		t.Fatalf("uploads = %d", len(catalog.uploads))
	}
	replacement := catalog.uploads[0]
	if replacement.Size != 60 || replacement.Name != "photo.jpg" {
		t.Errorf("unexpected replacement %+v", replacement)
	}

	// 台账以替换后的新文件为键
	entry, ok, err := ledger.Get(replacement.ID)
	if err != nil || !ok {
		t.Fatalf("ledger entry missing: ok=%v err=%v", ok, err)
	}
	if entry.Size != 60 || entry.QualityLevel != "medium" {
		t.Errorf("unexpected ledger entry %+v", entry)
	}
}

func TestRunIdempotence(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(mediaFile("A", "photo.jpg", 100, ts))
	reducer := &fakeReducer{outSize: 60}

	svc, _ := newTestEngine(t, catalog, reducer, ReconcileOptions{})

	if _, err := svc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if reducer.callCount() != 1 {
		t.Fatalf("first run transcode calls = %d", reducer.callCount())
	}

	// 第二次运行：替换产物已在台账且远端未变化，不再转码
	run2, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if reducer.callCount() != 1 {
		t.Errorf("second run must not transcode again, calls = %d", reducer.callCount())
	}
	if run2.Summary.FilesTranscoded != 0 {
		t.Errorf("second run FilesTranscoded = %d", run2.Summary.FilesTranscoded)
	}
	if run2.Summary.FilesSkipped != 1 {
		t.Errorf("second run FilesSkipped = %d", run2.Summary.FilesSkipped)
	}
	if len(catalog.uploads) != 1 {
		t.Errorf("second run must not upload, uploads = %d", len(catalog.uploads))
	}
}

func TestRunUploadFailureLeavesOriginal(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(mediaFile("A", "photo.jpg", 100, ts))
	catalog.uploadErr = sharederrors.NewServiceError(sharederrors.ErrorCodeQuotaExceeded, "storage quota exceeded")
	reducer := &fakeReducer{outSize: 60}

	svc, ledger := newTestEngine(t, catalog, reducer, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// 上传失败时原件必须原封不动，台账不能有记录
	if catalog.isTrashed("A") {
		t.Error("original must not be trashed when upload fails")
	}
	entries, err := ledger.All()
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("ledger must stay empty, got %+v", entries)
	}

	if len(run.Summary.Failures) != 1 {
		t.Fatalf("Failures = %+v", run.Summary.Failures)
	}
	f := run.Summary.Failures[0]
	if f.FileID != "A" || f.Stage != entities.FileStateReplacing {
		t.Errorf("unexpected failure %+v", f)
	}
	if !strings.Contains(f.Reason, string(sharederrors.ErrorCodeUploadFailed)) {
		t.Errorf("reason should carry upload failure code: %s", f.Reason)
	}
}

func TestRunNoSavingsKeepsOriginal(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(mediaFile("A", "photo.jpg", 100, ts))
	reducer := &fakeReducer{err: sharederrors.NewServiceError(sharederrors.ErrorCodeNoSavings, "insufficient size reduction")}

	svc, ledger := newTestEngine(t, catalog, reducer, ReconcileOptions{MinSizeReductionRatio: 0.3})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if catalog.isTrashed("A") {
		t.Error("original must survive when reduction is refused")
	}
	if run.Summary.FilesTranscoded != 0 {
		t.Errorf("FilesTranscoded = %d", run.Summary.FilesTranscoded)
	}
	if len(run.Summary.Failures) != 1 {
		t.Fatalf("Failures = %+v", run.Summary.Failures)
	}
	entries, _ := ledger.All()
	if len(entries) != 0 {
		t.Error("refused reduction must not be ledgered")
	}
}

func TestRunSkipsNonMediaAndSmallFiles(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	doc := entities.RemoteFile{ID: "D", Name: "notes.txt", Size: 5000, MimeType: "text/plain", CreatedAt: ts}
	small := mediaFile("S", "icon.jpg", 100, ts)
	catalog := newFakeCatalog(doc, small)
	reducer := &fakeReducer{outSize: 10}

	svc, _ := newTestEngine(t, catalog, reducer, ReconcileOptions{MinFileSizeBytes: 1024})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if reducer.callCount() != 0 {
		t.Errorf("nothing should reach the transcoder, calls = %d", reducer.callCount())
	}
	if run.Summary.FilesSkipped != 2 {
		t.Errorf("FilesSkipped = %d", run.Summary.FilesSkipped)
	}
}

func TestRunMalformedRecordsExcluded(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	good := entities.RemoteFile{ID: "G", Name: "ok.bin", Size: 10, CreatedAt: ts}
	noName := entities.RemoteFile{ID: "N", Size: 10, CreatedAt: ts}
	noSize := entities.RemoteFile{ID: "Z", Name: "zero.bin", CreatedAt: ts}
	catalog := newFakeCatalog(good, noName, noSize)

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if run.Summary.FilesExamined != 3 {
		t.Errorf("FilesExamined = %d", run.Summary.FilesExamined)
	}
	if run.Summary.MalformedRecords != 2 {
		t.Errorf("MalformedRecords = %d", run.Summary.MalformedRecords)
	}
	if catalog.isTrashed("N") || catalog.isTrashed("Z") {
		t.Error("malformed records must never be touched")
	}
}

func TestRunTrashFailureIsolated(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	a := entities.RemoteFile{ID: "A", Name: "x.bin", Size: 100, CreatedAt: ts}
	b := entities.RemoteFile{ID: "B", Name: "x.bin", Size: 100, CreatedAt: ts.Add(time.Hour)}
	c := entities.RemoteFile{ID: "C", Name: "y.bin", Size: 200, CreatedAt: ts}
	d := entities.RemoteFile{ID: "D", Name: "y.bin", Size: 200, CreatedAt: ts.Add(time.Hour)}
	catalog := newFakeCatalog(a, b, c, d)
	catalog.trashErr["B"] = sharederrors.NewServiceError(sharederrors.ErrorCodeTransient, "backend unavailable")

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// B的失败不影响D的处理，整次运行仍然完成
	if run.Status != entities.RunStatusCompleted {
		t.Fatalf("status = %s", run.Status)
	}
	if !catalog.isTrashed("D") {
		t.Error("failure on one group must not block other groups")
	}
	if run.Summary.DuplicatesTrashed != 1 {
		t.Errorf("DuplicatesTrashed = %d", run.Summary.DuplicatesTrashed)
	}
	if len(run.Summary.Failures) != 1 || run.Summary.Failures[0].FileID != "B" {
		t.Errorf("Failures = %+v", run.Summary.Failures)
	}
}

func TestRunListFailureAborts(t *testing.T) {
	catalog := newFakeCatalog()
	catalog.listErr = sharederrors.NewServiceError(sharederrors.ErrorCodeAuthError, "token expired")

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != entities.RunStatusAborted {
		t.Errorf("status = %s", run.Status)
	}
	if run.Error == "" {
		t.Error("aborted run must carry the error")
	}
	if run.FinishedAt == nil {
		t.Error("aborted run must still be finalized")
	}
}

func TestRunCancellation(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	files := make([]entities.RemoteFile, 0, 20)
	for i := 0; i < 20; i++ {
		files = append(files, entities.RemoteFile{
			ID: fmt.Sprintf("F%02d", i), Name: fmt.Sprintf("f%02d.bin", i), Size: 10, CreatedAt: ts,
		})
	}
	catalog := newFakeCatalog(files...)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if run.Status != entities.RunStatusCancelled {
		t.Errorf("status = %s", run.Status)
	}
	if run.FinishedAt == nil {
		t.Error("cancelled run must still produce a summary")
	}
}

func TestRunReadersIsolatedFromActiveRun(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	files := make([]entities.RemoteFile, 0, 80)
	for i := 0; i < 40; i++ {
		name := fmt.Sprintf("f%02d.bin", i)
		files = append(files,
			entities.RemoteFile{ID: fmt.Sprintf("A%02d", i), Name: name, Size: 10, CreatedAt: ts},
			entities.RemoteFile{ID: fmt.Sprintf("B%02d", i), Name: name, Size: 10, CreatedAt: ts.Add(time.Hour)},
		)
	}
	catalog := newFakeCatalog(files...)
	catalog.trashDelay = 2 * time.Millisecond

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{Workers: 4})

	started, err := svc.StartRun(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	// 运行期间持续读取并序列化快照，快照必须与引擎的活动对象隔离
	deadline := time.Now().Add(10 * time.Second)
	for {
		got, err := svc.GetRun(started.ID)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := json.Marshal(got); err != nil {
			t.Fatalf("snapshot not marshalable mid-run: %v", err)
		}
		if got.Status != entities.RunStatusRunning {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("run did not finish in time")
		}
		time.Sleep(time.Millisecond)
	}

	final, err := svc.GetRun(started.ID)
	if err != nil {
		t.Fatal(err)
	}
	if final.Status != entities.RunStatusCompleted {
		t.Fatalf("status = %s", final.Status)
	}
	if final.Summary.DuplicatesTrashed != 40 {
		t.Errorf("DuplicatesTrashed = %d", final.Summary.DuplicatesTrashed)
	}
}

func TestRunCancellationSparesReplacementWindow(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(mediaFile("A", "photo.jpg", 100, ts))
	reducer := &fakeReducer{outSize: 60}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 取消恰好落在上传进行中：替换窗口必须完整走完
	catalog.onUpload = cancel

	svc, ledger := newTestEngine(t, catalog, reducer, ReconcileOptions{})

	run, err := svc.Run(ctx)
	if err != nil {
		t.Fatal(err)
	}

	if len(catalog.uploads) != 1 {
		t.Fatalf("upload must complete despite cancellation, uploads = %d", len(catalog.uploads))
	}
	if !catalog.isTrashed("A") {
		t.Error("original must still be trashed after confirmed upload")
	}
	if _, ok, err := ledger.Get(catalog.uploads[0].ID); err != nil || !ok {
		t.Fatalf("replacement must be ledgered: ok=%v err=%v", ok, err)
	}
	if run.Summary.FilesTranscoded != 1 {
		t.Errorf("FilesTranscoded = %d, failures: %+v", run.Summary.FilesTranscoded, run.Summary.Failures)
	}
	if run.Status != entities.RunStatusCancelled {
		t.Errorf("status = %s", run.Status)
	}
}

func TestRunSingleActiveRun(t *testing.T) {
	catalog := newFakeCatalog()
	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	first, err := svc.begin()
	if err != nil {
		t.Fatal(err)
	}

	if _, err := svc.begin(); !sharederrors.IsCode(err, sharederrors.ErrorCodeConflict) {
		t.Fatalf("second begin should conflict, got %v", err)
	}

	// 槽位释放后可以再次运行
	svc.mu.Lock()
	svc.active = nil
	svc.mu.Unlock()
	_ = first

	if _, err := svc.begin(); err != nil {
		t.Fatalf("begin after release failed: %v", err)
	}
}

func TestRunPersistedAndListed(t *testing.T) {
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	catalog := newFakeCatalog(entities.RemoteFile{ID: "A", Name: "a.bin", Size: 10, CreatedAt: ts})

	svc, _ := newTestEngine(t, catalog, &fakeReducer{}, ReconcileOptions{})

	run, err := svc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	got, err := svc.GetRun(run.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != entities.RunStatusCompleted {
		t.Errorf("persisted status = %s", got.Status)
	}
	if got.Summary.BytesSavedReadable == "" {
		t.Error("summary must carry readable savings")
	}

	runs, err := svc.ListRuns(10)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].ID != run.ID {
		t.Errorf("ListRuns = %+v", runs)
	}
}
