package concurrent

import (
	"sort"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunAll(t *testing.T) {
	jobs := make([]int, 100)
	for i := range jobs {
		jobs[i] = i
	}

	var running, peak int32
	results := RunAll(5, jobs, func(job int) int {
		cur := atomic.AddInt32(&running, 1)
		for {
			old := atomic.LoadInt32(&peak)
			if cur <= old || atomic.CompareAndSwapInt32(&peak, old, cur) {
				break
			}
		}
		atomic.AddInt32(&running, -1)
		return job * job
	})

	assert.Len(t, results, 100)
	sort.Ints(results)
	for i, r := range results {
		assert.Equal(t, i*i, r)
	}
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(5))
}

func TestRunAllEmpty(t *testing.T) {
	results := RunAll(5, []string{}, func(job string) int { return len(job) })
	assert.Empty(t, results)
}

func TestWorkerPool(t *testing.T) {
	wp := NewWorkerPool[string, int](0, 3)
	wp.Start(func(job string) int { return len(job) })
	wp.AddJob("a")
	wp.AddJob("bb")
	wp.AddJob("ccc")
	wp.Close()
	wp.Wait()

	sum := 0
	for r := range wp.CollectResults() {
		sum += r
	}
	assert.Equal(t, 6, sum)
}
