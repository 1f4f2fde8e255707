package trend

import "time"

// Outcome is the per-source result of one aggregation round.
type Outcome struct {
	Source string
	Titles []string
	Err    error
}

// Report partitions an aggregation round into successes and failures.
type Report struct {
	Results map[string][]string `json:"results"`
	Errors  map[string]string   `json:"errors"`
}

// NewReport returns an empty report.
func NewReport() Report {
	return Report{
		Results: map[string][]string{},
		Errors:  map[string]string{},
	}
}

// Add files an outcome under results or errors, never both.
func (r Report) Add(o Outcome) {
	if o.Err != nil {
		r.Errors[o.Source] = o.Err.Error()
		return
	}
	titles := o.Titles
	if titles == nil {
		titles = []string{}
	}
	r.Results[o.Source] = titles
}

// Snapshot is one persisted successful fetch.
type Snapshot struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	URL       string    `json:"url"`
	Titles    []string  `json:"titles"`
	FetchedAt time.Time `json:"fetched_at"`
}
