// Copyright 2026 The TQ Core Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tqcore

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"
)

// TaskPool dispatches independent rule evaluations to the engine with a
// bounded degree of concurrency. Completion order is arbitrary; callers
// gather results back into insertion order themselves. The first task error
// cancels the pool's context so pending tasks can bail out early.
type TaskPool struct {
	semaphore chan struct{}
	logger    *slog.Logger
	wg        sync.WaitGroup
	mu        sync.Mutex
	errors    []error
	cancel    context.CancelFunc
}

// NewTaskPool creates a pool running at most poolSize tasks at once.
func NewTaskPool(poolSize int, logger *slog.Logger) *TaskPool {
	if poolSize <= 0 {
		poolSize = 1
	}
	if logger == nil {
		// noop logger by default
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &TaskPool{
		semaphore: make(chan struct{}, poolSize),
		logger:    logger,
	}
}

// Context derives a cancellable context from parent; the pool cancels it
// when any task fails.
func (tp *TaskPool) Context(parent context.Context) context.Context {
	ctx, cancel := context.WithCancel(parent)
	tp.mu.Lock()
	tp.cancel = cancel
	tp.mu.Unlock()
	return ctx
}

// Enqueue schedules a task. The id is only used for logging.
func (tp *TaskPool) Enqueue(id string, task func() error) {
	tp.wg.Add(1)
	go func() {
		tp.semaphore <- struct{}{}
		defer func() {
			<-tp.semaphore
			tp.wg.Done()
		}()

		tp.logger.Debug("executing task", "task_id", id)
		exeStartTime := time.Now()
		if err := task(); err != nil {
			tp.logger.Error("task failed", "task_id", id, "error", err.Error())
			tp.mu.Lock()
			tp.errors = append(tp.errors, err)
			cancel := tp.cancel
			tp.mu.Unlock()
			if cancel != nil {
				cancel()
			}
		}
		elapsed := time.Since(exeStartTime).Milliseconds()
		tp.logger.Debug("completed task", "task_id", id, "elapsed_ms", elapsed)
	}()
}

// Join waits for every enqueued task to finish and releases the pool's
// cancellation context.
func (tp *TaskPool) Join() {
	tp.wg.Wait()
	tp.mu.Lock()
	cancel := tp.cancel
	tp.cancel = nil
	tp.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// Errors returns a copy of every task error collected so far.
func (tp *TaskPool) Errors() []error {
	tp.mu.Lock()
	defer tp.mu.Unlock()

	errsCopy := make([]error, len(tp.errors))
	copy(errsCopy, tp.errors)
	return errsCopy
}
