// Package exports renders list datasets to CSV or JSON in the background and
// keeps the artifacts in the blob store.
package exports

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"

	"societycore/internal/blob"
	blobcore "societycore/internal/blob/core"
	"societycore/internal/core"
	"societycore/internal/listing"
	"societycore/pkg/domain"
	"societycore/pkg/logger"
)

// Status describes the lifecycle stage of an export.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Format names an artifact encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

var contentTypes = map[Format]string{FormatCSV: "text/csv", FormatJSON: "application/json"}

// ErrQueueFull is returned when the worker cannot accept more jobs.
var ErrQueueFull = errors.New("export queue full")

// Artifact is one stored rendering of an export.
type Artifact struct {
	Format      Format    `json:"format"`
	Key         string    `json:"key"`
	ContentType string    `json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	Rows        int       `json:"rows"`
	CreatedAt   time.Time `json:"created_at"`
}

// Record tracks an export request and its artifacts.
type Record struct {
	ID             string        `json:"id"`
	OrganizationID string        `json:"organization_id"`
	Dataset        string        `json:"dataset"`
	Formats        []Format      `json:"formats"`
	Status         Status        `json:"status"`
	Error          string        `json:"error,omitempty"`
	Artifacts      []Artifact    `json:"artifacts,omitempty"`
	RequestedBy    string        `json:"requested_by"`
	Query          listing.Query `json:"-"`
	CreatedAt      time.Time     `json:"created_at"`
	UpdatedAt      time.Time     `json:"updated_at"`
	CompletedAt    *time.Time    `json:"completed_at,omitempty"`
}

func (r Record) copy() Record {
	dup := r
	dup.Formats = append([]Format(nil), r.Formats...)
	dup.Artifacts = append([]Artifact(nil), r.Artifacts...)
	return dup
}

// Input is an enqueue request.
type Input struct {
	Dataset string
	Formats []Format
	Query   listing.Query
}

type task struct {
	id    string
	scope domain.Scope
}

// Worker executes exports on a single background goroutine.
type Worker struct {
	datasets map[string]Dataset
	store    blob.Store
	now      func() time.Time
	lggr     logger.Logger

	queue chan task
	mu    sync.RWMutex
	jobs  map[string]*Record

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorker wires a worker over the datasets of svc.
func NewWorker(svc *core.Service, store blob.Store) *Worker {
	return newWorker(Catalog(svc), store, svc.Now, svc.Logger().Named("exports"))
}

func newWorker(datasets map[string]Dataset, store blob.Store, now func() time.Time, lggr logger.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		datasets: datasets,
		store:    store,
		now:      now,
		lggr:     lggr,
		queue:    make(chan task, 32),
		jobs:     make(map[string]*Record),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins processing queued exports.
func (w *Worker) Start() {
	w.wg.Add(1)
	go w.loop()
}

// Stop halts the worker and waits for the running job.
func (w *Worker) Stop(ctx context.Context) error {
	w.cancel()
	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			return
		case t := <-w.queue:
			w.process(t)
		}
	}
}

// Enqueue validates the request and queues it. Exports are manager only and
// bound to one organization.
func (w *Worker) Enqueue(_ context.Context, scope domain.Scope, in Input) (Record, error) {
	if err := scope.RequireManager(); err != nil {
		return Record{}, err
	}
	if err := scope.RequireOrganization(); err != nil {
		return Record{}, err
	}
	if _, ok := w.datasets[in.Dataset]; !ok {
		return Record{}, fmt.Errorf("%w: unknown dataset %q", domain.ErrInvalidValue, in.Dataset)
	}
	formats := in.Formats
	if len(formats) == 0 {
		formats = []Format{FormatCSV}
	}
	uniq := make([]Format, 0, len(formats))
	seen := make(map[Format]struct{})
	for _, f := range formats {
		if _, ok := contentTypes[f]; !ok {
			return Record{}, fmt.Errorf("%w: unsupported format %q", domain.ErrInvalidValue, f)
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		uniq = append(uniq, f)
	}

	now := w.now().UTC()
	rec := &Record{
		ID:             uuid.NewString(),
		OrganizationID: scope.OrganizationID,
		Dataset:        in.Dataset,
		Formats:        uniq,
		Status:         StatusQueued,
		RequestedBy:    scope.ActorID,
		Query:          in.Query,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	w.mu.Lock()
	w.jobs[rec.ID] = rec
	snapshot := rec.copy()
	w.mu.Unlock()

	select {
	case w.queue <- task{id: rec.ID, scope: scope}:
	default:
		w.mu.Lock()
		delete(w.jobs, rec.ID)
		w.mu.Unlock()
		return Record{}, ErrQueueFull
	}
	w.lggr.Infow("export queued", "export_id", rec.ID, "dataset", rec.Dataset, "actor", scope.ActorID)
	return snapshot, nil
}

// Get returns the export when it belongs to the caller's organization.
func (w *Worker) Get(scope domain.Scope, id string) (Record, error) {
	w.mu.RLock()
	rec, ok := w.jobs[id]
	var snapshot Record
	if ok {
		snapshot = rec.copy()
	}
	w.mu.RUnlock()
	if !ok || !scope.Allows(snapshot.OrganizationID) || !scope.Role.CanManage() {
		return Record{}, fmt.Errorf("%w: export %s", domain.ErrNotFound, id)
	}
	return snapshot, nil
}

// Open streams one artifact of a finished export. The caller closes the reader.
func (w *Worker) Open(ctx context.Context, scope domain.Scope, id string, format Format) (Artifact, io.ReadCloser, error) {
	rec, err := w.Get(scope, id)
	if err != nil {
		return Artifact{}, nil, err
	}
	for _, a := range rec.Artifacts {
		if a.Format != format {
			continue
		}
		_, rc, err := w.store.Get(ctx, a.Key)
		if errors.Is(err, blobcore.ErrNotFound) {
			return Artifact{}, nil, fmt.Errorf("%w: artifact %s of export %s", domain.ErrNotFound, format, id)
		}
		return a, rc, err
	}
	return Artifact{}, nil, fmt.Errorf("%w: artifact %s of export %s", domain.ErrNotFound, format, id)
}

func (w *Worker) process(t task) {
	w.mu.RLock()
	rec, ok := w.jobs[t.id]
	var job Record
	if ok {
		job = rec.copy()
	}
	w.mu.RUnlock()
	if !ok {
		return
	}
	w.update(t.id, func(r *Record) { r.Status = StatusRunning })

	table, err := w.datasets[job.Dataset].Build(w.ctx, t.scope, job.Query)
	if err != nil {
		w.fail(t.id, fmt.Sprintf("build dataset: %v", err))
		return
	}
	artifacts := make([]Artifact, 0, len(job.Formats))
	for _, format := range job.Formats {
		payload, err := render(format, table)
		if err != nil {
			w.fail(t.id, err.Error())
			return
		}
		key := fmt.Sprintf("%s/exports/%s/%s.%s", job.OrganizationID, job.ID, job.Dataset, format)
		info, err := w.store.Put(w.ctx, key, bytes.NewReader(payload), blobcore.PutOptions{
			ContentType: contentTypes[format],
			Metadata:    map[string]string{"organization_id": job.OrganizationID, "requested_by": job.RequestedBy},
		})
		if err != nil {
			w.fail(t.id, fmt.Sprintf("store artifact: %v", err))
			return
		}
		artifacts = append(artifacts, Artifact{
			Format:      format,
			Key:         key,
			ContentType: contentTypes[format],
			SizeBytes:   info.Size,
			Rows:        len(table.Rows),
			CreatedAt:   w.now().UTC(),
		})
	}
	w.update(t.id, func(r *Record) {
		now := w.now().UTC()
		r.Status = StatusSucceeded
		r.Artifacts = artifacts
		r.CompletedAt = &now
	})
	w.lggr.Infow("export finished", "export_id", t.id, "dataset", job.Dataset, "rows", len(table.Rows))
}

func (w *Worker) update(id string, fn func(*Record)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if rec, ok := w.jobs[id]; ok {
		fn(rec)
		rec.UpdatedAt = w.now().UTC()
	}
}

func (w *Worker) fail(id, reason string) {
	w.update(id, func(r *Record) {
		now := w.now().UTC()
		r.Status = StatusFailed
		r.Error = reason
		r.CompletedAt = &now
	})
	w.lggr.Warnw("export failed", "export_id", id, "err", reason)
}

func render(format Format, t Table) ([]byte, error) {
	switch format {
	case FormatJSON:
		payload, err := json.Marshal(map[string]any{"columns": t.Columns, "rows": t.Records})
		if err != nil {
			return nil, fmt.Errorf("marshal json: %w", err)
		}
		return payload, nil
	case FormatCSV:
		buf := &bytes.Buffer{}
		writer := csv.NewWriter(buf)
		if err := writer.Write(t.Columns); err != nil {
			return nil, err
		}
		if err := writer.WriteAll(t.Rows); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("unsupported export format %s", format)
	}
}
