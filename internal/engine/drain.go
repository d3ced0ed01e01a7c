package engine

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/pmtech/fieldsync/internal/api"
	"github.com/pmtech/fieldsync/internal/store"
)

// ErrSyncInFlight is returned when RunSync is called while a previous run
// is still draining.
var ErrSyncInFlight = errors.New("sync already in flight")

// DrainResult tallies one pass over a queue.
type DrainResult struct {
	Processed  int `json:"processed"`
	Failed     int `json:"failed"`
	Conflicted int `json:"conflicted"`
	Skipped    int `json:"skipped"`
	Remaining  int `json:"remaining"`
}

// SyncReport is the outcome of a full sync run.
type SyncReport struct {
	Started   time.Time   `json:"started"`
	Finished  time.Time   `json:"finished"`
	Mutations DrainResult `json:"mutations"`
	Evidence  DrainResult `json:"evidence"`
}

// RunSync drains the mutation queue and then the evidence outbox, oldest
// first. At most one run executes at a time; a concurrent call returns
// ErrSyncInFlight instead of blocking.
func (e *Engine) RunSync(ctx context.Context) (SyncReport, error) {
	if !e.syncMu.TryLock() {
		return SyncReport{}, ErrSyncInFlight
	}
	defer e.syncMu.Unlock()

	ctx, span := e.tracer.Start(ctx, "engine.RunSync")
	defer span.End()

	report := SyncReport{Started: time.Now().UTC()}

	var err error
	report.Mutations, err = e.drainMutations(ctx)
	if err != nil {
		return report, err
	}
	report.Evidence, err = e.drainEvidence(ctx)
	if err != nil {
		return report, err
	}

	report.Finished = time.Now().UTC()
	span.SetAttributes(
		attribute.Int("sync.mutations.processed", report.Mutations.Processed),
		attribute.Int("sync.mutations.conflicted", report.Mutations.Conflicted),
		attribute.Int("sync.evidence.processed", report.Evidence.Processed),
		attribute.Int("sync.evidence.conflicted", report.Evidence.Conflicted),
	)
	slog.Info("sync complete",
		"mutations_processed", report.Mutations.Processed,
		"mutations_failed", report.Mutations.Failed,
		"evidence_processed", report.Evidence.Processed,
		"evidence_failed", report.Evidence.Failed,
	)
	return report, nil
}

// drainMutations replays queued mutations in enqueue order. Failed items
// never block the ones behind them: retryable failures record an attempt
// and stay, non-retryable responses move to the conflict ledger and leave
// the queue.
func (e *Engine) drainMutations(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	pending, err := e.store.ListMutations()
	if err != nil {
		return res, err
	}

	for _, m := range pending {
		if err := ctx.Err(); err != nil {
			break
		}

		var body []byte
		contentType := ""
		if m.Body != nil {
			body = []byte(*m.Body)
			contentType = "application/json"
		}
		_, err := e.client.Do(ctx, m.Method, m.Path, body, contentType, nil)
		switch {
		case err == nil:
			if derr := e.store.DeleteMutation(m.ID); derr != nil {
				return res, derr
			}
			res.Processed++
		case api.IsNonRetryable(err):
			// The server has seen and rejected this payload; retrying
			// cannot change the answer.
			if lerr := e.recordMutationConflict(m, err); lerr != nil {
				return res, lerr
			}
			if derr := e.store.DeleteMutation(m.ID); derr != nil {
				return res, derr
			}
			res.Conflicted++
			slog.Warn("mutation rejected, moved to conflicts", "id", m.ID, "path", m.Path, "err", err)
		default:
			if merr := e.store.MarkMutationAttempt(m.ID, err.Error()); merr != nil {
				return res, merr
			}
			res.Failed++
		}
	}

	res.Remaining, err = e.store.CountMutations()
	return res, err
}

// drainEvidence replays the attachment outbox. Metadata whose blob has
// gone missing is dropped silently rather than retried forever.
func (e *Engine) drainEvidence(ctx context.Context) (DrainResult, error) {
	var res DrainResult

	pending, err := e.store.ListEvidence()
	if err != nil {
		return res, err
	}

	for _, ev := range pending {
		if err := ctx.Err(); err != nil {
			break
		}

		data, found, gerr := e.store.GetBlob(ev.ID)
		if gerr != nil {
			return res, gerr
		}
		if !found {
			if derr := e.store.DeleteEvidence(ev.ID); derr != nil {
				return res, derr
			}
			res.Skipped++
			slog.Warn("evidence blob missing, dropping entry", "id", ev.ID)
			continue
		}

		path, perr := uploadPath(ev.Kind, ev.TaskID, ev.ChecklistItemID)
		if perr != nil {
			// A row that cannot produce a path is unreplayable.
			if derr := e.store.DeleteEvidence(ev.ID); derr != nil {
				return res, derr
			}
			res.Skipped++
			continue
		}

		_, err := e.client.Upload(ctx, path, ev.FileName, ev.ContentType, data)
		switch {
		case err == nil:
			if derr := e.store.DeleteEvidence(ev.ID); derr != nil {
				return res, derr
			}
			res.Processed++
		case api.IsNonRetryable(err):
			if lerr := e.recordEvidenceConflict(ev, path, err); lerr != nil {
				return res, lerr
			}
			if derr := e.store.DeleteEvidence(ev.ID); derr != nil {
				return res, derr
			}
			res.Conflicted++
			slog.Warn("evidence rejected, moved to conflicts", "id", ev.ID, "path", path, "err", err)
		default:
			if merr := e.store.MarkEvidenceAttempt(ev.ID, err.Error()); merr != nil {
				return res, merr
			}
			res.Failed++
		}
	}

	res.Remaining, err = e.store.CountEvidence()
	return res, err
}

func (e *Engine) recordMutationConflict(m store.Mutation, cause error) error {
	status, message := conflictDetail(cause)
	_, err := e.store.AppendConflict(store.ConflictKindMutation, m.ID, m.Path, taskIDFromPath(m.Path), m.CreatedAt, status, message)
	return err
}

func (e *Engine) recordEvidenceConflict(ev store.EvidenceMeta, path string, cause error) error {
	status, message := conflictDetail(cause)
	taskID := ev.TaskID
	_, err := e.store.AppendConflict(store.ConflictKindEvidence, ev.ID, path, &taskID, ev.CreatedAt, status, message)
	return err
}

func conflictDetail(cause error) (int, string) {
	if apiErr, ok := api.AsError(cause); ok {
		return apiErr.Status, apiErr.Message
	}
	return 0, cause.Error()
}
