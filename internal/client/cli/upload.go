package cli

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/cloudbox/internal/client/models"
	"github.com/dmitrijs2005/cloudbox/internal/client/services"
	"github.com/dmitrijs2005/cloudbox/internal/filex"
	"github.com/dustin/go-humanize"
)

// Upload queues the given files (directories are expanded) and sends the
// whole queue. Tasks that failed in an earlier pass of the same session are
// retried as well.
func (a *App) Upload(ctx context.Context, paths []string) error {
	if err := a.prepareMutation(ctx); err != nil {
		return err
	}

	files, err := filex.ExpandPaths(paths)
	if err != nil {
		return err
	}

	payloads := make([]models.Payload, 0, len(files))
	for _, p := range files {
		pl, err := models.PayloadFromPath(p)
		if err != nil {
			return err
		}
		payloads = append(payloads, pl)
	}

	if retried := a.uploads.RetryFailed(); len(retried) > 0 {
		a.log.Debug(ctx, "failed uploads requeued", "ids", retried)
	}
	ids := a.uploads.Enqueue(payloads...)
	a.log.Debug(ctx, "upload tasks queued", "ids", ids)

	return a.startUploads(ctx)
}

func (a *App) startUploads(ctx context.Context) error {
	events, unsubscribe := a.uploads.Subscribe()
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case ev := <-events:
				a.renderUploadEvent(ev)
			case <-stop:
				// drain events still buffered when StartAll returned
				for {
					select {
					case ev := <-events:
						a.renderUploadEvent(ev)
					default:
						return
					}
				}
			}
		}
	}()

	res, err := a.uploads.StartAll(ctx)
	unsubscribe()
	close(stop)
	wg.Wait()

	if err != nil {
		return err
	}

	a.printf("Uploaded %d file(s), %d failed\n", len(res.Uploaded), len(res.Failed))
	if res.AllSucceeded {
		a.uploads.ClearFinished()
		return a.List(ctx, "")
	}
	return res.Err()
}

func (a *App) renderUploadEvent(ev services.UploadEvent) {
	switch ev.Status {
	case models.UploadUploading:
		a.printf("[%d] %s: %d%%\n", ev.TaskID, ev.Name, ev.Progress)
	case models.UploadSuccess:
		a.printf("[%d] %s: done\n", ev.TaskID, ev.Name)
	case models.UploadError:
		a.printf("[%d] %s: failed: %v\n", ev.TaskID, ev.Name, ev.Err)
	}
}

// Uploads prints the tasks still held by the queue.
func (a *App) Uploads(context.Context) error {
	tasks := a.uploads.Tasks()
	if len(tasks) == 0 {
		a.println("Upload queue is empty")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("[%d] %s (%s) %s %d%%", t.ID, t.Payload.Name, humanize.Bytes(uint64(max(t.Payload.Size, 0))), t.Status, t.Progress)
		if t.Err != nil {
			line += ": " + t.Err.Error()
		}
		a.println(line)
	}
	return nil
}
