// Package pool provides a fixed set of workers for CPU bound work, such as prime sampling.
package pool

import (
	"io"
	"runtime"
	"sync"
)

// Pool is a set of long lived workers.
//
// Functions taking a *Pool accept nil, and then do the work on the calling goroutine.
type Pool struct {
	tasks chan func()
	once  sync.Once
}

// NewPool starts count workers, or one per CPU if count <= 0.
func NewPool(count int) *Pool {
	if count <= 0 {
		count = runtime.NumCPU()
	}
	p := &Pool{tasks: make(chan func())}
	for i := 0; i < count; i++ {
		go func() {
			for task := range p.tasks {
				task()
			}
		}()
	}
	return p
}

// TearDown stops the workers. The pool must not be used afterwards.
func (p *Pool) TearDown() {
	p.once.Do(func() { close(p.tasks) })
}

// Parallelize evaluates f(0), …, f(count-1) on the workers of p and returns the results in order.
func Parallelize[T any](p *Pool, count int, f func(int) T) []T {
	results := make([]T, count)
	if p == nil {
		for i := range results {
			results[i] = f(i)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(count)
	for i := 0; i < count; i++ {
		i := i
		p.tasks <- func() {
			defer wg.Done()
			results[i] = f(i)
		}
	}
	wg.Wait()
	return results
}

// LockedReader makes an io.Reader safe for concurrent use.
type LockedReader struct {
	reader io.Reader
	m      sync.Mutex
}

// NewLockedReader wraps r.
func NewLockedReader(r io.Reader) *LockedReader {
	return &LockedReader{reader: r}
}

func (r *LockedReader) Read(p []byte) (int, error) {
	r.m.Lock()
	defer r.m.Unlock()
	return r.reader.Read(p)
}
