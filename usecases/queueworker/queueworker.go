package queueworker

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"mcbackend/config"
	"mcbackend/services"
	"mcbackend/services/autopromote"
)

// QueueWorker runs the two periodic scheduling sweeps: draining the task
// queue to available agents and auto-promoting stale review tasks.
type QueueWorker struct {
	taskQueueService   services.TaskQueueService
	autoPromoteService *autopromote.AutoPromoteService
	cfg                config.QueueConfig

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewQueueWorker(
	taskQueueService services.TaskQueueService,
	autoPromoteService *autopromote.AutoPromoteService,
	cfg config.QueueConfig,
) *QueueWorker {
	return &QueueWorker{
		taskQueueService:   taskQueueService,
		autoPromoteService: autoPromoteService,
		cfg:                cfg,
	}
}

func (w *QueueWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return fmt.Errorf("queue worker already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(2)
	go w.queueLoop(runCtx)
	go w.promoteLoop(runCtx)

	log.Printf("🚀 Queue worker started (process every %s, promote every %s)",
		w.cfg.ProcessInterval, w.cfg.AutoPromoteInterval)
	return nil
}

func (w *QueueWorker) Stop() {
	w.mu.Lock()
	cancel := w.cancel
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	w.wg.Wait()
	log.Printf("🛑 Queue worker stopped")
}

func (w *QueueWorker) queueLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.ProcessInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.taskQueueService.ProcessQueue(ctx, nil, w.cfg.ProcessBatchLimit); err != nil {
				log.Printf("❌ Queue processing pass failed: %v", err)
			}
		}
	}
}

func (w *QueueWorker) promoteLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.cfg.AutoPromoteInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.autoPromoteService.PromoteEligibleTasks(ctx, time.Now().UTC()); err != nil {
				log.Printf("❌ Auto-promotion sweep failed: %v", err)
			}
		}
	}
}
