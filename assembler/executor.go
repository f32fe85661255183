package assembler

import (
	"sync"
	"time"
)

type task struct {
	start int
	end   int
}

// executor runs a slice-based parallel for over [0, total). The range is cut
// into two chunks per worker plus single-element tasks for the remainder.
type executor struct {
	workers int
}

func newExecutor(workers int) *executor {
	if workers < 1 {
		workers = 1
	}
	return &executor{workers: workers}
}

func (e *executor) split(total int) []task {
	if total <= 0 {
		return nil
	}
	taskLen, remainder := total/e.workers, total%e.workers
	tasks := make([]task, 0, e.workers*2+remainder)

	start := 0
	switch {
	case taskLen == 1:
		for start < total-remainder {
			tasks = append(tasks, task{start: start, end: start + 1})
			start++
		}
	case taskLen > 1:
		half1, half2 := taskLen/2, taskLen/2
		if taskLen%2 == 1 {
			half2++
		}
		for start < total-remainder {
			tasks = append(tasks, task{start: start, end: start + half1})
			start += half1
			tasks = append(tasks, task{start: start, end: start + half2})
			start += half2
		}
	}

	for i := 0; i < remainder; i++ {
		tasks = append(tasks, task{start: start, end: start + 1})
		start++
	}
	return tasks
}

// dispatch hands every task to the pool and blocks until all workers are
// done. fn receives the index of the worker running it.
func (e *executor) dispatch(total int, fn func(worker int, t task)) time.Duration {
	start := time.Now()
	tasks := e.split(total)
	if len(tasks) == 0 {
		return time.Since(start)
	}

	dispatchChan := make(chan task, len(tasks))
	for _, t := range tasks {
		dispatchChan <- t
	}
	close(dispatchChan)

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for t := range dispatchChan {
				fn(i, t)
			}
		}(i)
	}
	wg.Wait()
	return time.Since(start)
}
