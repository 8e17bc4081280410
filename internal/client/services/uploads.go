package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/logging"
)

var (
	ErrQueueBusy      = errors.New("upload queue is already running")
	ErrTaskNotFound   = errors.New("upload task not found")
	ErrTaskNotPending = errors.New("upload task is not pending")
	ErrTaskNotFailed  = errors.New("upload task has not failed")
)

const eventBuffer = 64

// Uploader is the part of the remote client the queue needs.
type Uploader interface {
	Upload(ctx context.Context, payload models.Payload, onProgress func(percent int)) (models.FileRecord, error)
}

// Sink receives every record produced by a successful upload.
type Sink interface {
	AddUploaded(rec models.FileRecord)
}

// UploadEvent reports a status change or a progress step of one task.
type UploadEvent struct {
	TaskID   int
	Name     string
	Status   models.UploadStatus
	Progress int
	Err      error
}

// BatchResult summarises one StartAll pass.
type BatchResult struct {
	// Uploaded and Failed hold task ids of this pass, in transmission order.
	Uploaded []int
	Failed   []int
	Errors   map[int]error

	// AllSucceeded is true when the queue is non-empty and every task in it,
	// including ones from earlier passes, has status success.
	AllSucceeded bool
}

// Err joins the per-task errors of the pass.
func (r BatchResult) Err() error {
	errs := make([]error, 0, len(r.Failed))
	for _, id := range r.Failed {
		errs = append(errs, r.Errors[id])
	}
	return errors.Join(errs...)
}

type subscriber struct {
	ch      chan UploadEvent
	dropped int
}

// UploadQueue owns the upload tasks and transmits them one at a time.
type UploadQueue struct {
	api  Uploader
	sink Sink
	log  logging.Logger

	mu      sync.Mutex
	tasks   []*models.UploadTask
	nextID  int
	running bool
	subs    map[*subscriber]struct{}
}

func NewUploadQueue(api Uploader, sink Sink, log logging.Logger) *UploadQueue {
	if log == nil {
		log = logging.Nop()
	}
	return &UploadQueue{
		api:  api,
		sink: sink,
		log:  log,
		subs: make(map[*subscriber]struct{}),
	}
}

// Enqueue appends one pending task per payload and returns their ids.
// Nothing is transmitted until StartAll.
func (q *UploadQueue) Enqueue(payloads ...models.Payload) []int {
	q.mu.Lock()
	defer q.mu.Unlock()

	ids := make([]int, 0, len(payloads))
	for _, p := range payloads {
		q.nextID++
		q.tasks = append(q.tasks, &models.UploadTask{ID: q.nextID, Payload: p, Status: models.UploadPending})
		ids = append(ids, q.nextID)
	}
	return ids
}

// Dequeue removes a pending task. In-flight and finished tasks stay.
func (q *UploadQueue) Dequeue(id int) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(id)
	if i < 0 {
		return fmt.Errorf("dequeue %d: %w", id, ErrTaskNotFound)
	}
	if q.tasks[i].Status != models.UploadPending {
		return fmt.Errorf("dequeue %d (%s): %w", id, q.tasks[i].Status, ErrTaskNotPending)
	}
	q.tasks = append(q.tasks[:i:i], q.tasks[i+1:]...)
	return nil
}

// Retry puts a failed task back to pending so the next StartAll sends it again.
func (q *UploadQueue) Retry(id int) error {
	q.mu.Lock()
	i := q.indexOf(id)
	if i < 0 {
		q.mu.Unlock()
		return fmt.Errorf("retry %d: %w", id, ErrTaskNotFound)
	}
	t := q.tasks[i]
	if !t.Status.CanTransition(models.UploadPending) {
		q.mu.Unlock()
		return fmt.Errorf("retry %d (%s): %w", id, t.Status, ErrTaskNotFailed)
	}
	t.Status = models.UploadPending
	t.Progress = 0
	t.Err = nil
	ev := eventOf(t)
	q.mu.Unlock()

	q.publish(ev)
	return nil
}

// RetryFailed puts every failed task back to pending and returns their ids.
func (q *UploadQueue) RetryFailed() []int {
	q.mu.Lock()
	var (
		ids []int
		evs []UploadEvent
	)
	for _, t := range q.tasks {
		if t.Status != models.UploadError {
			continue
		}
		t.Status = models.UploadPending
		t.Progress = 0
		t.Err = nil
		ids = append(ids, t.ID)
		evs = append(evs, eventOf(t))
	}
	q.mu.Unlock()

	for _, ev := range evs {
		q.publish(ev)
	}
	return ids
}

// Tasks returns a snapshot of the queue in enqueue order.
func (q *UploadQueue) Tasks() []models.UploadTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]models.UploadTask, len(q.tasks))
	for i, t := range q.tasks {
		out[i] = snapshotTask(t)
	}
	return out
}

// Task returns a snapshot of one task.
func (q *UploadQueue) Task(id int) (models.UploadTask, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	i := q.indexOf(id)
	if i < 0 {
		return models.UploadTask{}, false
	}
	return snapshotTask(q.tasks[i]), true
}

// ClearFinished drops successful tasks, e.g. after the caller acted on
// BatchResult.AllSucceeded.
func (q *UploadQueue) ClearFinished() {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.tasks[:0]
	for _, t := range q.tasks {
		if t.Status != models.UploadSuccess {
			kept = append(kept, t)
		}
	}
	for i := len(kept); i < len(q.tasks); i++ {
		q.tasks[i] = nil
	}
	q.tasks = kept
}

// Subscribe returns a channel of task events and a function that stops the
// subscription. The channel is never closed. Events are not waited on: a
// subscriber whose buffer is full misses them, and Tasks stays the
// authoritative state of the queue.
func (q *UploadQueue) Subscribe() (<-chan UploadEvent, func()) {
	sub := &subscriber{ch: make(chan UploadEvent, eventBuffer)}

	q.mu.Lock()
	q.subs[sub] = struct{}{}
	q.mu.Unlock()

	return sub.ch, func() {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.subs, sub)
	}
}

// StartAll sends every task pending at call time, strictly one after the
// other in enqueue order. A failed task does not stop the pass. Only one pass
// runs at a time; a concurrent call gets ErrQueueBusy.
//
// A cancelled ctx stops the pass before the next task starts; untouched
// tasks stay pending and ctx.Err() is returned with the partial result.
func (q *UploadQueue) StartAll(ctx context.Context) (BatchResult, error) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return BatchResult{}, ErrQueueBusy
	}
	q.running = true
	ids := make([]int, 0, len(q.tasks))
	for _, t := range q.tasks {
		if t.Status == models.UploadPending {
			ids = append(ids, t.ID)
		}
	}
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	res := BatchResult{Errors: make(map[int]error)}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			res.AllSucceeded = q.allSucceeded()
			return res, err
		}

		rec, ok, err := q.transmit(ctx, id)
		if !ok {
			continue
		}
		if err != nil {
			res.Failed = append(res.Failed, id)
			res.Errors[id] = err
			continue
		}
		res.Uploaded = append(res.Uploaded, id)
		if q.sink != nil {
			q.sink.AddUploaded(rec)
		}
	}

	res.AllSucceeded = q.allSucceeded()
	q.log.Info(ctx, "upload pass finished",
		"uploaded", len(res.Uploaded),
		"failed", len(res.Failed),
		"all_succeeded", res.AllSucceeded,
	)
	return res, nil
}

// transmit runs one task. ok=false means the task left the queue or stopped
// being pending before its turn.
func (q *UploadQueue) transmit(ctx context.Context, id int) (models.FileRecord, bool, error) {
	q.mu.Lock()
	i := q.indexOf(id)
	if i < 0 || q.tasks[i].Status != models.UploadPending {
		q.mu.Unlock()
		return models.FileRecord{}, false, nil
	}
	t := q.tasks[i]
	t.Status = models.UploadUploading
	payload := t.Payload
	ev := eventOf(t)
	q.mu.Unlock()

	q.publish(ev)
	q.log.Debug(ctx, "upload started", "task", id, "name", payload.Name, "size", payload.Size)

	rec, err := q.api.Upload(ctx, payload, func(percent int) {
		q.mu.Lock()
		if t.Status != models.UploadUploading || percent <= t.Progress {
			q.mu.Unlock()
			return
		}
		t.Progress = min(percent, 100)
		ev := eventOf(t)
		q.mu.Unlock()
		q.publish(ev)
	})

	q.mu.Lock()
	if err != nil {
		err = fmt.Errorf("upload %s: %w", payload.Name, err)
		t.Status = models.UploadError
		t.Err = err
	} else {
		t.Status = models.UploadSuccess
		t.Progress = 100
		r := rec.Clone()
		t.Record = &r
	}
	ev = eventOf(t)
	q.mu.Unlock()

	q.publish(ev)
	if err != nil {
		q.log.Warn(ctx, "upload failed", "task", id, "name", payload.Name, "err", err)
	} else {
		q.log.Debug(ctx, "upload done", "task", id, "name", payload.Name, "id", rec.ID)
	}
	return rec, true, err
}

func (q *UploadQueue) allSucceeded() bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.tasks) == 0 {
		return false
	}
	for _, t := range q.tasks {
		if t.Status != models.UploadSuccess {
			return false
		}
	}
	return true
}

// publish fans ev out to subscribers without blocking the queue.
func (q *UploadQueue) publish(ev UploadEvent) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for s := range q.subs {
		select {
		case s.ch <- ev:
		default:
			s.dropped++
			if s.dropped == 1 {
				q.log.Debug(context.Background(), "upload subscriber is not reading, dropping events", "task", ev.TaskID)
			}
		}
	}
}

// indexOf must be called with q.mu held.
func (q *UploadQueue) indexOf(id int) int {
	for i, t := range q.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func eventOf(t *models.UploadTask) UploadEvent {
	return UploadEvent{TaskID: t.ID, Name: t.Payload.Name, Status: t.Status, Progress: t.Progress, Err: t.Err}
}

func snapshotTask(t *models.UploadTask) models.UploadTask {
	c := *t
	if t.Record != nil {
		r := t.Record.Clone()
		c.Record = &r
	}
	return c
}
