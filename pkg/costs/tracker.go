// Package costs tracks token usage and estimated spend across LLM and
// embedding calls.
package costs

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// pricing is approximate USD per 1M tokens. Unknown models record usage
// with zero cost.
var pricing = map[string]struct{ Input, Output float64 }{
	"gemini-2.5-flash":       {Input: 0.30, Output: 2.50},
	"gemini-embedding-001":   {Input: 0.15, Output: 0},
	"gpt-4o-mini":            {Input: 0.15, Output: 0.60},
	"gpt-4o":                 {Input: 2.50, Output: 10.00},
	"gpt-4-1106-preview":     {Input: 10.00, Output: 30.00},
	"text-embedding-ada-002": {Input: 0.10, Output: 0},
	"text-embedding-3-small": {Input: 0.02, Output: 0},
}

// Call is one recorded API call.
type Call struct {
	At           time.Time `json:"at"`
	Operation    string    `json:"operation"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// Summary aggregates recorded calls.
type Summary struct {
	Calls        int                `json:"calls"`
	InputTokens  int                `json:"input_tokens"`
	OutputTokens int                `json:"output_tokens"`
	CostUSD      float64            `json:"cost_usd"`
	ByOperation  map[string]float64 `json:"by_operation"`
}

// Tracker accumulates API call records. Safe for concurrent use; the
// ingest worker pool records from multiple goroutines.
type Tracker struct {
	mu    sync.Mutex
	calls []Call
	now   func() time.Time
}

func New() *Tracker {
	return &Tracker{now: time.Now}
}

// Record implements adapter.UsageReporter.
func (t *Tracker) Record(operation, model string, inputTokens, outputTokens int) {
	cost := 0.0
	if p, ok := pricing[model]; ok {
		cost = float64(inputTokens)/1e6*p.Input + float64(outputTokens)/1e6*p.Output
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(t.calls, Call{
		At:           t.now(),
		Operation:    operation,
		Model:        model,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
		CostUSD:      cost,
	})
}

// Summarize aggregates everything recorded so far.
func (t *Tracker) Summarize() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	sum := Summary{ByOperation: map[string]float64{}}
	for _, c := range t.calls {
		sum.Calls++
		sum.InputTokens += c.InputTokens
		sum.OutputTokens += c.OutputTokens
		sum.CostUSD += c.CostUSD
		sum.ByOperation[c.Operation] += c.CostUSD
	}
	return sum
}

// Save appends nothing fancy: the whole call log as JSON.
func (t *Tracker) Save(w io.Writer) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := json.NewEncoder(w).Encode(t.calls); err != nil {
		return goerr.Wrap(err, "failed to encode cost log")
	}
	return nil
}

// LoadFile seeds the tracker with a previously saved call log. A missing
// file is not an error; the tracker starts empty.
func (t *Tracker) LoadFile(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return goerr.Wrap(err, "failed to open cost log", goerr.V("path", path))
	}
	defer f.Close()

	var calls []Call
	if err := json.NewDecoder(f).Decode(&calls); err != nil {
		return goerr.Wrap(err, "failed to decode cost log", goerr.V("path", path))
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.calls = append(calls, t.calls...)
	return nil
}

// SaveFile writes the call log to path.
func (t *Tracker) SaveFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return goerr.Wrap(err, "failed to create cost log", goerr.V("path", path))
	}
	defer f.Close()
	return t.Save(f)
}
