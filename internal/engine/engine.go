package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/pmtech/fieldsync/internal/api"
	"github.com/pmtech/fieldsync/internal/store"
)

const deviceIDKey = "device_id"

// Engine is the sync core's entry point: live calls with offline capture,
// the read-through cache, and the queue drains.
type Engine struct {
	store  *store.Store
	client *api.Client
	tracer trace.Tracer

	// syncMu serializes RunSync: two drains interleaving over the same
	// queue would double-attempt items.
	syncMu sync.Mutex
}

// New wires an Engine over an open store and a configured client. The
// persistent device id is created on first use and attached to every
// request.
func New(st *store.Store, client *api.Client) *Engine {
	e := &Engine{
		store:  st,
		client: client,
		tracer: otel.Tracer("fieldsync/engine"),
	}
	if client.DeviceID == "" {
		client.DeviceID = e.ensureDeviceID()
	}
	return e
}

func (e *Engine) ensureDeviceID() string {
	id, found, err := e.store.GetMeta(deviceIDKey)
	if err == nil && found {
		return id
	}
	id = uuid.NewString()
	if err := e.store.PutMeta(deviceIDKey, id); err != nil {
		slog.Warn("persist device id failed", "err", err)
	}
	return id
}

// PostResult reports how a mutation call ended: delivered live (Body holds
// the response) or captured into the queue (QueueID set).
type PostResult struct {
	Queued  bool   `json:"queued"`
	QueueID string `json:"queue_id,omitempty"`
	Body    []byte `json:"-"`
}

// Post attempts a live mutation call. A network failure is not surfaced:
// the call is captured into the durable queue and the caller gets a queued
// result so the UI can show optimistic state. HTTP error responses
// (validation, conflict, auth) surface immediately and are never queued.
func (e *Engine) Post(ctx context.Context, path string, body []byte) (PostResult, error) {
	data, err := e.client.Post(ctx, path, body)
	if err == nil {
		return PostResult{Body: data}, nil
	}
	if !api.IsNetworkError(err) {
		return PostResult{}, err
	}

	var bodyStr *string
	if body != nil {
		s := string(body)
		bodyStr = &s
	}
	id, qerr := e.store.EnqueueMutation(path, bodyStr)
	if qerr != nil {
		return PostResult{}, fmt.Errorf("capture offline mutation: %w", qerr)
	}
	slog.Info("mutation queued for sync", "path", path, "id", id)
	return PostResult{Queued: true, QueueID: id}, nil
}

// Get performs a read-through GET. Successful responses on cacheable paths
// refresh the cache; a network failure is answered from the last-known-good
// entry when one exists. HTTP error responses propagate without touching
// the cache.
func (e *Engine) Get(ctx context.Context, path string) ([]byte, error) {
	if !CacheablePath(path) {
		return e.client.Get(ctx, path)
	}

	data, err := e.client.Get(ctx, path)
	if err == nil {
		if cerr := e.store.PutCacheEntry(path, data); cerr != nil {
			// Serving the live result matters more than caching it.
			slog.Warn("cache write failed", "path", path, "err", cerr)
		}
		return data, nil
	}
	if !api.IsNetworkError(err) {
		return nil, err
	}

	entry, found, cerr := e.store.GetCacheEntry(path)
	if cerr != nil {
		slog.Warn("cache read failed", "path", path, "err", cerr)
		return nil, err
	}
	if !found || !json.Valid(entry.Value) {
		// A corrupt entry is a miss, never a crash.
		return nil, err
	}
	slog.Debug("serving cached response", "path", path, "saved_at", entry.SavedAt)
	return entry.Value, nil
}

// UploadResult mirrors PostResult for attachment uploads.
type UploadResult struct {
	Queued  bool   `json:"queued"`
	QueueID string `json:"queue_id,omitempty"`
	Body    []byte `json:"-"`
}

// UploadEvidence attempts a live attachment upload, capturing it into the
// outbox on network failure. The enqueue writes meta then blob and fails
// closed: a blob write failure reports an error rather than a phantom
// queued upload.
func (e *Engine) UploadEvidence(ctx context.Context, kind, taskID string, checklistItemID *string, fileName, contentType string, data []byte) (UploadResult, error) {
	path, err := uploadPath(kind, taskID, checklistItemID)
	if err != nil {
		return UploadResult{}, err
	}

	body, err := e.client.Upload(ctx, path, fileName, contentType, data)
	if err == nil {
		return UploadResult{Body: body}, nil
	}
	if !api.IsNetworkError(err) {
		return UploadResult{}, err
	}

	id, qerr := e.store.EnqueueEvidence(kind, taskID, checklistItemID, fileName, contentType, data)
	if qerr != nil {
		return UploadResult{}, fmt.Errorf("capture offline upload: %w", qerr)
	}
	slog.Info("evidence queued for sync", "task", taskID, "id", id, "bytes", len(data))
	return UploadResult{Queued: true, QueueID: id}, nil
}

func uploadPath(kind, taskID string, checklistItemID *string) (string, error) {
	switch kind {
	case store.EvidenceKindTask:
		return fmt.Sprintf("/api/tasks/%s/evidence/upload", taskID), nil
	case store.EvidenceKindChecklist:
		if checklistItemID == nil {
			return "", fmt.Errorf("checklist evidence requires a checklist item id")
		}
		return fmt.Sprintf("/api/tasks/%s/checklist-items/%s/evidence/upload", taskID, *checklistItemID), nil
	}
	return "", fmt.Errorf("unknown evidence kind %q", kind)
}

// Local-state queries. These read only the durable store and answer
// regardless of connectivity.

func (e *Engine) ListPendingMutations() ([]store.Mutation, error) {
	return e.store.ListMutations()
}

func (e *Engine) ListPendingEvidence() ([]store.EvidenceMeta, error) {
	return e.store.ListEvidence()
}

func (e *Engine) ListConflicts() ([]store.Conflict, error) {
	return e.store.ListConflicts()
}

func (e *Engine) ClearConflicts() error {
	return e.store.ClearConflicts()
}

func (e *Engine) ConflictCountForTask(taskID string) (int, error) {
	return e.store.CountConflictsForTask(taskID)
}

// CacheFreshness returns when the read cache was last written, or nil if
// never.
func (e *Engine) CacheFreshness() (*time.Time, error) {
	return e.store.CacheFreshness()
}
