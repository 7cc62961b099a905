package domain

// RunResults is the ordered step id -> result mapping produced by one run.
// It is read-only once constructed.
type RunResults struct {
	entries []StepResult
	index   map[string]int
}

// NewRunResults builds a RunResults from entries in the given order.
// The slice is copied; a repeated step id keeps its first entry.
func NewRunResults(entries []StepResult) *RunResults {
	r := &RunResults{
		entries: make([]StepResult, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
	}
	for _, e := range entries {
		if _, dup := r.index[e.StepID]; dup {
			continue
		}
		r.index[e.StepID] = len(r.entries)
		r.entries = append(r.entries, e)
	}
	return r
}

// Len returns the number of entries.
func (r *RunResults) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Keys returns the step ids in insertion order.
func (r *RunResults) Keys() []string {
	if r == nil {
		return nil
	}
	keys := make([]string, len(r.entries))
	for i, e := range r.entries {
		keys[i] = e.StepID
	}
	return keys
}

// Get returns the stored text for a step.
func (r *RunResults) Get(stepID string) (string, bool) {
	res, ok := r.Result(stepID)
	return res.Text, ok
}

// Result returns the full entry for a step.
func (r *RunResults) Result(stepID string) (StepResult, bool) {
	if r == nil {
		return StepResult{}, false
	}
	i, ok := r.index[stepID]
	if !ok {
		return StepResult{}, false
	}
	return r.entries[i], true
}

// Entries returns a copy of all entries in insertion order.
func (r *RunResults) Entries() []StepResult {
	if r == nil {
		return nil
	}
	out := make([]StepResult, len(r.entries))
	copy(out, r.entries)
	return out
}

// Map returns a copy of the results as a plain step id -> text map.
func (r *RunResults) Map() map[string]string {
	out := make(map[string]string, r.Len())
	for _, e := range r.Entries() {
		out[e.StepID] = e.Text
	}
	return out
}

// FailedCount returns how many steps ended in an error marker.
func (r *RunResults) FailedCount() int {
	return len(r.Failed())
}

// Failed returns the ids of failed steps in insertion order.
func (r *RunResults) Failed() []string {
	var ids []string
	for _, e := range r.Entries() {
		if e.Failed {
			ids = append(ids, e.StepID)
		}
	}
	return ids
}

// TotalUsage sums token usage across all entries.
func (r *RunResults) TotalUsage() Usage {
	var total Usage
	for _, e := range r.Entries() {
		total = total.Add(e.Usage)
	}
	return total
}
