package entity

import "time"

// Target is one domain entering the acquisition pipeline together with the
// asset reference the extractor found for it (empty when none was found)
type Target struct {
	Domain    string `json:"domain"`
	Reference string `json:"logo_url,omitempty"`
}

// HasReference reports whether the target carries an asset reference
func (t Target) HasReference() bool {
	return t.Reference != ""
}

// Task represents an acquisition task handed to a worker
type Task struct {
	Target    Target
	Repoll    bool // re-ask the directory for a domain left pending
	CreatedAt time.Time
}

// Asset is the persisted artifact for an acquired domain
type Asset struct {
	Domain    string `json:"domain"`
	Path      string `json:"path"`
	Extension string `json:"extension"`
}

// Result represents the terminal outcome of one domain in a batch
type Result struct {
	RunID     string    `json:"run_id"`
	Domain    string    `json:"domain"`
	State     State     `json:"state"`
	Path      string    `json:"path,omitempty"`
	Tier      Tier      `json:"tier,omitempty"`
	Reused    bool      `json:"reused,omitempty"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Acquired reports whether the result holds an image
func (r *Result) Acquired() bool {
	return r.State == StateAcquired
}

// Report maps every input domain to its terminal result
type Report map[string]*Result

// Count returns how many results are in the given state
func (r Report) Count(state State) int {
	n := 0
	for _, result := range r {
		if result.State == state {
			n++
		}
	}
	return n
}

// Metrics represents acquisition metrics
type Metrics struct {
	QueueLength    int
	ActiveWorkers  int
	TotalWorkers   int
	TotalDomains   int64
	Processed      int64
	Acquired       int64
	Reused         int64
	NotFound       int64
	Pending        int64
	Escalated      int64
	Attempts       map[Tier]int64
	Successes      map[Tier]int64
	StartTime      time.Time
	LastUpdateTime time.Time
	ActiveDomains  []string
	DwellUntil     time.Time
}
