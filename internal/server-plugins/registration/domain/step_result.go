package registration

import (
	"fmt"
	"time"
)

// StepResult records the outcome of one executed step. It never holds secret values.
type StepResult struct {
	StepID    StepID        `json:"stepId"`
	Kind      StepKind      `json:"kind"`
	Succeeded bool          `json:"succeeded"`
	RemoteID  string        `json:"remoteId,omitempty"`
	Error     string        `json:"error,omitempty"`
	Duration  time.Duration `json:"durationMs"`
}

// Ledger is the run-local record of executed steps and their outputs.
// It is owned by a single run and is not safe for concurrent use.
type Ledger struct {
	results []StepResult
	outputs map[Ref]string
	order   []OutputKey
	values  map[OutputKey]string
}

func NewLedger() *Ledger {
	return &Ledger{
		outputs: make(map[Ref]string),
		values:  make(map[OutputKey]string),
	}
}

// Capture stores an output produced by step.
func (l *Ledger) Capture(step StepID, key OutputKey, value string) {
	l.outputs[Ref{Step: step, Output: key}] = value
	if _, ok := l.values[key]; !ok {
		l.order = append(l.order, key)
	}
	l.values[key] = value
}

// Resolve returns the value a reference points at.
func (l *Ledger) Resolve(ref Ref) (string, error) {
	v, ok := l.outputs[ref]
	if !ok || v == "" {
		return "", fmt.Errorf("unresolved reference %s", ref)
	}
	return v, nil
}

func (l *Ledger) Record(result StepResult) {
	l.results = append(l.results, result)
}

func (l *Ledger) Results() []StepResult {
	out := make([]StepResult, len(l.results))
	copy(out, l.results)
	return out
}

// Value returns a captured output by key.
func (l *Ledger) Value(key OutputKey) (string, bool) {
	v, ok := l.values[key]
	return v, ok
}

// Data returns every captured output keyed by its data name.
func (l *Ledger) Data() map[string]string {
	out := make(map[string]string, len(l.values))
	for _, k := range l.order {
		out[string(k)] = l.values[k]
	}
	return out
}
