package metrics

import (
	"context"
	"sort"
	"sync"
	"time"
)

// CommandSample describes one processed command.
type CommandSample struct {
	Kind         string
	Success      bool
	FailureStage string
	FailureKind  string
	Duration     time.Duration
}

type Collector interface {
	RecordCommand(ctx context.Context, sample CommandSample)
	RecordDirectoryStep(ctx context.Context, step string, duration time.Duration, success bool)
}

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) RecordCommand(ctx context.Context, sample CommandSample) {}

func (c *NoOpCollector) RecordDirectoryStep(ctx context.Context, step string, duration time.Duration, success bool) {
}

type CommandStats struct {
	Total     int            `json:"total"`
	Succeeded int            `json:"succeeded"`
	Failed    int            `json:"failed"`
	Failures  map[string]int `json:"failures"`
}

type StepStats struct {
	Step          string        `json:"step"`
	Count         int           `json:"count"`
	Failures      int           `json:"failures"`
	TotalDuration time.Duration `json:"-"`
	MaxDuration   time.Duration `json:"-"`
	AverageMs     int64         `json:"averageMs"`
	MaxMs         int64         `json:"maxMs"`
}

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Since    time.Time    `json:"since"`
	Commands CommandStats `json:"commands"`
	Steps    []StepStats  `json:"steps"`
}

// InMemoryCollector counts commands and directory steps since process start.
type InMemoryCollector struct {
	mu       sync.Mutex
	since    time.Time
	commands CommandStats
	steps    map[string]*StepStats
}

func NewInMemoryCollector() *InMemoryCollector {
	return &InMemoryCollector{
		since:    time.Now(),
		commands: CommandStats{Failures: map[string]int{}},
		steps:    map[string]*StepStats{},
	}
}

// RecordCommand counts failures under "stage/kind".
func (c *InMemoryCollector) RecordCommand(ctx context.Context, sample CommandSample) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.commands.Total++
	if sample.Success {
		c.commands.Succeeded++
		return
	}
	c.commands.Failed++
	c.commands.Failures[sample.FailureStage+"/"+sample.FailureKind]++
}

func (c *InMemoryCollector) RecordDirectoryStep(ctx context.Context, step string, duration time.Duration, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stats, ok := c.steps[step]
	if !ok {
		stats = &StepStats{Step: step}
		c.steps[step] = stats
	}
	stats.Count++
	if !success {
		stats.Failures++
	}
	stats.TotalDuration += duration
	if duration > stats.MaxDuration {
		stats.MaxDuration = duration
	}
}

func (c *InMemoryCollector) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Since: c.since,
		Commands: CommandStats{
			Total:     c.commands.Total,
			Succeeded: c.commands.Succeeded,
			Failed:    c.commands.Failed,
			Failures:  make(map[string]int, len(c.commands.Failures)),
		},
		Steps: make([]StepStats, 0, len(c.steps)),
	}
	for k, v := range c.commands.Failures {
		snap.Commands.Failures[k] = v
	}
	for _, s := range c.steps {
		stats := *s
		stats.AverageMs = (s.TotalDuration / time.Duration(s.Count)).Milliseconds()
		stats.MaxMs = s.MaxDuration.Milliseconds()
		snap.Steps = append(snap.Steps, stats)
	}
	sort.Slice(snap.Steps, func(i, j int) bool { return snap.Steps[i].Step < snap.Steps[j].Step })
	return snap
}
