package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

type status struct {
	Polls int
	Last  string
}

func TestSnapshot_LoadStore(t *testing.T) {
	var s Snapshot[status]

	v, ok := s.Load()
	assert.False(t, ok)
	assert.Equal(t, status{}, v)

	s.Store(status{Polls: 1, Last: "job-1"})
	v, ok = s.Load()
	assert.True(t, ok)
	assert.Equal(t, status{Polls: 1, Last: "job-1"}, v)
}

func TestSnapshot_ConcurrentUpdate(t *testing.T) {
	var s Snapshot[status]
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(func(st status) status {
				st.Polls++
				return st
			})
		}()
	}
	wg.Wait()

	v, _ := s.Load()
	assert.Equal(t, 50, v.Polls)
}
