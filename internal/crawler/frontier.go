package crawler

import "sync"

// Frontier is the URL state of one crawl session: a FIFO queue of URLs
// waiting to be fetched, the set of URLs that have been claimed for a
// fetch, and the set of URLs that were fetched successfully.
//
// A URL moves queued → attempted → visited. A URL whose fetch fails stays
// in attempted only, so it is never fetched again in the same session but
// does not count as visited. All methods are safe for concurrent use.
type Frontier struct {
	mu        sync.Mutex
	queue     []string
	queued    map[string]struct{}
	attempted map[string]struct{}
	visited   map[string]struct{}
}

// NewFrontier creates an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		queue:     make([]string, 0),
		queued:    make(map[string]struct{}),
		attempted: make(map[string]struct{}),
		visited:   make(map[string]struct{}),
	}
}

// Push appends the URLs that are not yet known, in order, and returns how
// many were added.
func (f *Frontier) Push(urls ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	added := 0
	for _, u := range urls {
		if f.isKnownLocked(u) {
			continue
		}
		f.queue = append(f.queue, u)
		f.queued[u] = struct{}{}
		added++
	}
	return added
}

// Next removes and returns the oldest queued URL.
func (f *Frontier) Next() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(f.queue) == 0 {
		return "", false
	}
	u := f.queue[0]
	f.queue[0] = ""
	f.queue = f.queue[1:]
	delete(f.queued, u)
	return u, true
}

// Claim atomically checks that u has never been attempted and records the
// attempt. Only the caller that gets true may fetch u.
func (f *Frontier) Claim(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.attempted[u]; ok {
		return false
	}
	f.attempted[u] = struct{}{}
	return true
}

// MarkVisited records a successful fetch of u.
func (f *Frontier) MarkVisited(u string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.attempted[u] = struct{}{}
	f.visited[u] = struct{}{}
}

// IsKnown reports whether u is queued, attempted or visited.
func (f *Frontier) IsKnown(u string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.isKnownLocked(u)
}

func (f *Frontier) isKnownLocked(u string) bool {
	if _, ok := f.queued[u]; ok {
		return true
	}
	if _, ok := f.attempted[u]; ok {
		return true
	}
	_, ok := f.visited[u]
	return ok
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.queue)
}

// VisitedCount returns the number of successfully fetched URLs.
func (f *Frontier) VisitedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.visited)
}
