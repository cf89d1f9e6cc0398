package downloader

import "sync"

// sharedState carries the cross-worker coordination for one acquisition
// call: the monotonic download counter, the cooperative stop flag, and the
// file index allocator that keeps output names unique across engines. All
// fields are guarded by one mutex; the struct is created at the start of a
// Download call and goes out of scope at return.
type sharedState struct {
	mu        sync.Mutex
	count     int
	target    int
	stopped   bool
	fileIndex int
}

func newSharedState(target, fileIndex int) *sharedState {
	return &sharedState{target: target, fileIndex: fileIndex}
}

// Add records n newly accepted images and returns the running total. Once
// the target is reached the stop intent is set immediately; already
// dispatched fetches are not interrupted.
func (s *sharedState) Add(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.count += n
	}
	if s.count >= s.target {
		s.stopped = true
	}
	return s.count
}

// Count returns the images accepted so far.
func (s *sharedState) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// Remaining returns how many images are still needed.
func (s *sharedState) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.count >= s.target {
		return 0
	}
	return s.target - s.count
}

// Stop records the intent to cancel remaining work.
func (s *sharedState) Stop() {
	s.mu.Lock()
	s.stopped = true
	s.mu.Unlock()
}

// ShouldStop reports whether workers should skip further items.
func (s *sharedState) ShouldStop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped || s.count >= s.target
}

// NextIndexBlock reserves n consecutive output file indexes and returns the
// first one.
func (s *sharedState) NextIndexBlock(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	start := s.fileIndex
	s.fileIndex += n
	return start
}
