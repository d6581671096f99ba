package marker

import (
	"sync"
	"time"
)

// Record is a marker captured by a Recorder.
type Record struct {
	Code Code
	At   time.Duration
}

// Recorder keeps every marker in memory. Handy for tests and dry runs.
type Recorder struct {
	mu      sync.Mutex
	records []Record
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Init() error { return nil }

func (r *Recorder) Send(code Code, at time.Duration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, Record{Code: code, At: at})
	return nil
}

func (r *Recorder) Shutdown() error { return nil }

func (r *Recorder) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Record(nil), r.records...)
}

// Codes returns the recorded codes as strings, in emission order.
func (r *Recorder) Codes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	codes := make([]string, len(r.records))
	for i, rec := range r.records {
		codes[i] = rec.Code.String()
	}
	return codes
}

func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = nil
}
