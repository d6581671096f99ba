package internal

import (
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// section is the engine's single critical section.
//
// It is reentrant for the goroutine that holds it, and it can be handed over to a
// task goroutine for the duration of a resume. Only the holder touches depth.
type section struct {
	mu sync.Mutex

	holder atomic.Int64
	depth  int
}

type hold struct {
	gid   int64
	depth int
}

func getGID() int64 {
	return goid.Get()
}

func (s *section) enter() {
	gid := getGID()
	if s.holder.Load() == gid {
		s.depth++
		return
	}

	s.mu.Lock()
	s.holder.Store(gid)
	s.depth = 1
}

func (s *section) leave() {
	s.depth--
	if s.depth == 0 {
		s.holder.Store(0)
		s.mu.Unlock()
	}
}

// held reports whether the calling goroutine currently owns the section.
func (s *section) held() bool {
	return s.holder.Load() == getGID()
}

// transfer gives the section to another goroutine without unlocking the mutex.
func (s *section) transfer(gid int64, depth int) hold {
	prev := hold{gid: s.holder.Load(), depth: s.depth}
	s.holder.Store(gid)
	s.depth = depth
	return prev
}

func (s *section) restore(h hold) int {
	depth := s.depth
	s.holder.Store(h.gid)
	s.depth = h.depth
	return depth
}
