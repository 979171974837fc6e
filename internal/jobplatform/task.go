package jobplatform

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Input fields the platform's jobs read from a planned task.
const (
	FieldImagePrompt  = "imagePrompt"
	FieldSpeechPrompt = "speechPrompt"

	// Result fields inside job_proof.
	ProofImageURL  = "imageUrl"
	ProofSpeechURL = "uploadedFileUrl"

	correlationField = "correlationId"
)

// Input is the payload of one planned task.
type Input struct {
	Field         string
	Value         string
	CorrelationID string
}

// Encode renders the input as the JSON string the submit endpoint expects.
func (in Input) Encode() (string, error) {
	if in.Field == "" {
		return "", errors.New("jobplatform: input field is required")
	}
	payload := map[string]string{in.Field: in.Value}
	if in.CorrelationID != "" {
		payload[correlationField] = in.CorrelationID
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Task is one entry of job_tasks. PlannedTask and JobProof are JSON documents
// the platform delivers as strings.
type Task struct {
	ID            string
	Status        string
	Comment       string
	FailureReason string
	JobProof      string
	PlannedTask   string
	Added         time.Time
}

// ParseTasks reads job_tasks from an applicants response.
func ParseTasks(body []byte) ([]Task, error) {
	if !gjson.ValidBytes(body) {
		return nil, errors.New("jobplatform: applicants response is not json")
	}
	list := gjson.GetBytes(body, "job_tasks")
	if !list.IsArray() {
		return nil, nil
	}
	var tasks []Task
	list.ForEach(func(_, t gjson.Result) bool {
		tasks = append(tasks, Task{
			ID:            t.Get("_id").String(),
			Status:        strings.ToLower(t.Get("status").String()),
			Comment:       t.Get("comment").String(),
			FailureReason: t.Get("failureReason").String(),
			JobProof:      embedded(t.Get("job_proof")),
			PlannedTask:   embedded(t.Get("planned_task")),
			Added:         timestamp(t.Get("added")),
		})
		return true
	})
	return tasks, nil
}

// embedded returns the JSON text of a field that is normally a string holding
// JSON but may arrive as an inline object.
func embedded(r gjson.Result) string {
	switch {
	case r.Type == gjson.String:
		return r.String()
	case r.IsObject():
		return r.Raw
	}
	return ""
}

func timestamp(r gjson.Result) time.Time {
	switch r.Type {
	case gjson.Number:
		return time.UnixMilli(r.Int()).UTC()
	case gjson.String:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.000Z", "2006-01-02 15:04:05"} {
			if ts, err := time.Parse(layout, r.String()); err == nil {
				return ts
			}
		}
	}
	return time.Time{}
}

// Failed reports a terminal rejection by the worker or the platform.
func (t Task) Failed() bool {
	return t.Status == "failed" || t.Status == "declined"
}

// FailureDetail is the most specific reason the platform gave.
func (t Task) FailureDetail() string {
	if s := strings.TrimSpace(t.Comment); s != "" {
		return s
	}
	if s := strings.TrimSpace(t.FailureReason); s != "" {
		return s
	}
	return "Task failed without specific error"
}

// ResultURL extracts field from job_proof. Unparseable or blank proofs yield "".
func (t Task) ResultURL(field string) string {
	if t.JobProof == "" || !gjson.Valid(t.JobProof) {
		return ""
	}
	return strings.TrimSpace(gjson.Get(t.JobProof, field).String())
}

// Matcher finds the task created by one submission.
type Matcher struct {
	Field         string
	Key           string
	CorrelationID string
}

// Select returns the newest task whose planned input carries the key. When a
// correlation id is set, a task echoing it wins; tasks echoing a different id
// belong to other submissions and are skipped.
func (m Matcher) Select(tasks []Task) (Task, bool) {
	var (
		best      Task
		found     bool
		corrBest  Task
		corrFound bool
	)
	for _, t := range tasks {
		if t.PlannedTask == "" || !gjson.Valid(t.PlannedTask) {
			continue
		}
		planned := gjson.Parse(t.PlannedTask)
		if m.CorrelationID != "" {
			if corr := planned.Get(correlationField); corr.Exists() && corr.String() != "" {
				if corr.String() == m.CorrelationID && (!corrFound || t.Added.After(corrBest.Added)) {
					corrBest, corrFound = t, true
				}
				continue
			}
		}
		value := planned.Get(m.Field)
		if value.Type != gjson.String || value.String() != m.Key {
			continue
		}
		if !found || t.Added.After(best.Added) {
			best, found = t, true
		}
	}
	if corrFound {
		return corrBest, true
	}
	return best, found
}
