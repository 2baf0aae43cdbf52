package registration

import (
	"encoding/json"
	"errors"
	"time"
)

// Stage names the pipeline stage a failure came from.
type Stage string

const (
	StageExtraction Stage = "extraction"
	StageValidation Stage = "validation"
	StagePlanning   Stage = "planning"
	StageDirectory  Stage = "directory"
)

type ErrorDetail struct {
	Stage  Stage    `json:"stage"`
	Kind   string   `json:"kind"`
	Step   StepKind `json:"step,omitempty"`
	Reason string   `json:"reason"`
}

// ErrorDetailFromError classifies err into the failure detail for stage.
func ErrorDetailFromError(stage Stage, err error) *ErrorDetail {
	detail := &ErrorDetail{Stage: stage, Kind: "Internal", Reason: err.Error()}

	var ee *ExtractionError
	var ve *ValidationError
	var de *DirectoryStepError
	switch {
	case errors.Is(err, ErrEmptyCommand):
		detail.Kind = string(ExtractionMalformedResponse)
	case errors.As(err, &ee):
		detail.Kind = string(ee.Kind)
		detail.Reason = ee.Reason
	case errors.As(err, &ve):
		detail.Kind = string(ve.Kind)
		detail.Reason = ve.Reason
	case errors.As(err, &de):
		detail.Kind = string(de.Kind)
		detail.Step = de.Step
		detail.Reason = de.Reason
		if detail.Reason == "" {
			detail.Reason = err.Error()
		}
	case errors.Is(err, ErrInvalidPlan):
		detail.Kind = "InvalidPlan"
	}
	return detail
}

// CommandResult is the immutable outcome of processing one command.
type CommandResult struct {
	success   bool
	message   string
	data      map[string]string
	nextSteps []string
	errDetail *ErrorDetail
	steps     []StepResult
	runID     string
	duration  time.Duration
}

func NewSuccessResult(message string, data map[string]string, nextSteps []string, steps []StepResult) *CommandResult {
	return newCommandResult(true, message, data, nextSteps, nil, steps)
}

func NewFailureResult(message string, detail *ErrorDetail, data map[string]string, nextSteps []string, steps []StepResult) *CommandResult {
	return newCommandResult(false, message, data, nextSteps, detail, steps)
}

func newCommandResult(success bool, message string, data map[string]string, nextSteps []string, detail *ErrorDetail, steps []StepResult) *CommandResult {
	r := &CommandResult{
		success:   success,
		message:   message,
		data:      make(map[string]string, len(data)),
		nextSteps: append([]string{}, nextSteps...),
		steps:     append([]StepResult(nil), steps...),
	}
	for k, v := range data {
		r.data[k] = v
	}
	if detail != nil {
		d := *detail
		r.errDetail = &d
	}
	return r
}

// WithRun returns a copy stamped with the run id and elapsed time.
func (r *CommandResult) WithRun(runID string, duration time.Duration) *CommandResult {
	c := newCommandResult(r.success, r.message, r.data, r.nextSteps, r.errDetail, r.steps)
	c.runID = runID
	c.duration = duration
	return c
}

func (r *CommandResult) Success() bool           { return r.success }
func (r *CommandResult) Message() string         { return r.message }
func (r *CommandResult) RunID() string           { return r.runID }
func (r *CommandResult) Duration() time.Duration { return r.duration }

func (r *CommandResult) Data() map[string]string {
	out := make(map[string]string, len(r.data))
	for k, v := range r.data {
		out[k] = v
	}
	return out
}

func (r *CommandResult) NextSteps() []string {
	return append([]string{}, r.nextSteps...)
}

func (r *CommandResult) Steps() []StepResult {
	return append([]StepResult(nil), r.steps...)
}

func (r *CommandResult) ErrorDetail() *ErrorDetail {
	if r.errDetail == nil {
		return nil
	}
	d := *r.errDetail
	return &d
}

type commandResultJSON struct {
	Success   bool              `json:"success"`
	Message   string            `json:"message"`
	Data      map[string]string `json:"data"`
	NextSteps []string          `json:"nextSteps"`
	Error     *ErrorDetail      `json:"error,omitempty"`
	Steps     []StepResult      `json:"steps,omitempty"`
	RunID     string            `json:"runId,omitempty"`
}

func (r *CommandResult) MarshalJSON() ([]byte, error) {
	steps := make([]StepResult, len(r.steps))
	for i, s := range r.steps {
		s.Duration = s.Duration / time.Millisecond
		steps[i] = s
	}
	return json.Marshal(commandResultJSON{
		Success:   r.success,
		Message:   r.message,
		Data:      r.Data(),
		NextSteps: r.NextSteps(),
		Error:     r.ErrorDetail(),
		Steps:     steps,
		RunID:     r.runID,
	})
}
