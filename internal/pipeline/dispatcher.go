package pipeline

import (
	"context"
	"sync"

	"muichiro-nexus/pkg/kafka"
	"muichiro-nexus/pkg/log"
	"muichiro-nexus/pkg/tasks"
)

// AsyncDispatcher runs tasks in detached goroutines. It is used when Kafka
// is disabled.
type AsyncDispatcher struct {
	processor kafka.TaskProcessor
	wg        sync.WaitGroup
}

func NewAsyncDispatcher(processor kafka.TaskProcessor) *AsyncDispatcher {
	return &AsyncDispatcher{processor: processor}
}

// Dispatch never fails; the task runs with a context detached from ctx.
func (d *AsyncDispatcher) Dispatch(ctx context.Context, task tasks.FileProcessingTask) error {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		if err := d.processor.Process(context.WithoutCancel(ctx), task); err != nil {
			log.Errorf("[Dispatcher] processing of file %s failed: %v", task.FileID, err)
		}
	}()
	return nil
}

// Wait blocks until all dispatched tasks have finished.
func (d *AsyncDispatcher) Wait() {
	d.wg.Wait()
}

// Drain waits for in-flight tasks until ctx is done. It returns ctx.Err() if
// tasks were still running when it gave up.
func (d *AsyncDispatcher) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
