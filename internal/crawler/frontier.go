package crawler

// VisitedSet holds every CrawlURL already dispatched in this or a prior run.
// It only grows. The scheduler goroutine is its sole writer, so it carries no
// lock.
type VisitedSet struct {
	seen map[string]struct{}
}

// NewVisitedSet seeds a VisitedSet with urls.
func NewVisitedSet(urls ...string) *VisitedSet {
	v := &VisitedSet{seen: make(map[string]struct{}, len(urls))}
	for _, u := range urls {
		v.Add(u)
	}
	return v
}

// Add marks url as visited and reports whether it was new.
func (v *VisitedSet) Add(url string) bool {
	if url == "" {
		return false
	}
	if _, ok := v.seen[url]; ok {
		return false
	}
	v.seen[url] = struct{}{}
	return true
}

// Has reports whether url was already visited.
func (v *VisitedSet) Has(url string) bool {
	_, ok := v.seen[url]
	return ok
}

// Len returns the number of visited URLs.
func (v *VisitedSet) Len() int {
	return len(v.seen)
}

// Frontier is the FIFO queue of pending CrawlURLs. It never admits a URL that
// is already visited or already queued.
type Frontier struct {
	visited *VisitedSet
	queue   []string
	queued  map[string]struct{}
}

// NewFrontier returns an empty Frontier guarded by visited.
func NewFrontier(visited *VisitedSet) *Frontier {
	return &Frontier{
		visited: visited,
		queued:  make(map[string]struct{}),
	}
}

// Push enqueues url unless it is visited or already pending.
func (f *Frontier) Push(url string) bool {
	if url == "" || f.visited.Has(url) {
		return false
	}
	if _, ok := f.queued[url]; ok {
		return false
	}
	f.queued[url] = struct{}{}
	f.queue = append(f.queue, url)
	return true
}

// Len returns the number of pending URLs.
func (f *Frontier) Len() int {
	return len(f.queue)
}

// Drain empties the frontier into a batch, marking every URL visited before
// returning so that rediscovery by a sibling fetch cannot enqueue it again.
// When limit > 0 at most limit URLs are returned; the rest stay queued and
// unvisited.
func (f *Frontier) Drain(limit int) []string {
	n := len(f.queue)
	if limit > 0 && limit < n {
		n = limit
	}
	batch := make([]string, 0, n)
	for _, url := range f.queue[:n] {
		delete(f.queued, url)
		if f.visited.Add(url) {
			batch = append(batch, url)
		}
	}
	rest := make([]string, len(f.queue)-n)
	copy(rest, f.queue[n:])
	f.queue = rest
	return batch
}

// Pending returns a copy of the queued URLs in FIFO order.
func (f *Frontier) Pending() []string {
	out := make([]string, len(f.queue))
	copy(out, f.queue)
	return out
}
