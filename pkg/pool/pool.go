package pool

import "sync"

// WorkerPool manages a pool of goroutines to perform tasks.
type WorkerPool struct {
	tasks chan func()
	wg    sync.WaitGroup
}

// New creates a new worker pool with a specified number of workers.
func New(numWorkers int, taskQueueSize int) *WorkerPool {
	p := &WorkerPool{
		tasks: make(chan func(), taskQueueSize),
	}

	p.wg.Add(numWorkers)
	for i := 0; i < numWorkers; i++ {
		go p.worker()
	}

	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		task()
	}
}

// Submit adds a task to the worker pool. It blocks when the queue is full.
func (p *WorkerPool) Submit(task func()) {
	p.tasks <- task
}

// Stop waits for all submitted tasks to finish and then stops the workers.
func (p *WorkerPool) Stop() {
	close(p.tasks)
	p.wg.Wait()
}
