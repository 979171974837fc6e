package jobplatform

import (
	"testing"
	"time"
)

func TestInputEncode(t *testing.T) {
	got, err := Input{Field: FieldSpeechPrompt, Value: `say "hi"`, CorrelationID: "gen-1"}.Encode()
	if err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	if got != `{"correlationId":"gen-1","speechPrompt":"say \"hi\""}` {
		t.Fatalf("unexpected encoding %s", got)
	}
	if _, err := (Input{Value: "x"}).Encode(); err == nil {
		t.Fatalf("expected error for missing field")
	}
}

func TestParseTasks(t *testing.T) {
	body := []byte(`{"job_tasks":[
		{"_id":"a","status":"Running","added":"2025-03-01T10:00:00.000Z","planned_task":"{\"imagePrompt\":\"k\"}","job_proof":"{\"imageUrl\":\"u1\"}"},
		{"_id":"b","status":"completed","added":1740823200000,"planned_task":{"imagePrompt":"k"},"job_proof":{"imageUrl":"u2"}}
	]}`)
	tasks, err := ParseTasks(body)
	if err != nil {
		t.Fatalf("ParseTasks error: %v", err)
	}
	if len(tasks) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(tasks))
	}
	if tasks[0].Status != "running" || tasks[0].ResultURL(ProofImageURL) != "u1" {
		t.Fatalf("unexpected first task %+v", tasks[0])
	}
	if tasks[0].Added.IsZero() || tasks[1].Added.IsZero() {
		t.Fatalf("expected parsed timestamps")
	}
	if tasks[1].ResultURL(ProofImageURL) != "u2" || tasks[1].PlannedTask == "" {
		t.Fatalf("unexpected second task %+v", tasks[1])
	}
}

func TestParseTasksRejectsGarbage(t *testing.T) {
	if _, err := ParseTasks([]byte("<html>")); err == nil {
		t.Fatalf("expected error")
	}
	tasks, err := ParseTasks([]byte(`{"message":"no tasks"}`))
	if err != nil || len(tasks) != 0 {
		t.Fatalf("expected empty task list, got %v %v", tasks, err)
	}
}

func TestTaskResultURL(t *testing.T) {
	cases := []struct {
		name  string
		proof string
		want  string
	}{
		{name: "empty", proof: "", want: ""},
		{name: "not json", proof: "uploaded!", want: ""},
		{name: "blank url", proof: `{"imageUrl":"  "}`, want: ""},
		{name: "wrong field", proof: `{"uploadedFileUrl":"x"}`, want: ""},
		{name: "url", proof: `{"imageUrl":"https://x/y.png"}`, want: "https://x/y.png"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := (Task{JobProof: tc.proof}).ResultURL(ProofImageURL); got != tc.want {
				t.Fatalf("ResultURL = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestTaskFailureDetail(t *testing.T) {
	if got := (Task{Comment: " blurry ", FailureReason: "x"}).FailureDetail(); got != "blurry" {
		t.Fatalf("expected comment first, got %q", got)
	}
	if got := (Task{FailureReason: "timeout"}).FailureDetail(); got != "timeout" {
		t.Fatalf("expected failure reason, got %q", got)
	}
	if got := (Task{}).FailureDetail(); got == "" {
		t.Fatalf("expected generic detail")
	}
}

func TestMatcherPicksNewestIdenticalSubmission(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "old", PlannedTask: `{"speechPrompt":"hello"}`, Added: base},
		{ID: "new", PlannedTask: `{"speechPrompt":"hello"}`, Added: base.Add(time.Minute)},
		{ID: "other", PlannedTask: `{"speechPrompt":"hello there"}`, Added: base.Add(2 * time.Minute)},
		{ID: "broken", PlannedTask: `{speechPrompt`, Added: base.Add(3 * time.Minute)},
	}
	got, ok := Matcher{Field: FieldSpeechPrompt, Key: "hello"}.Select(tasks)
	if !ok || got.ID != "new" {
		t.Fatalf("expected newest identical task, got %+v %v", got, ok)
	}
}

func TestMatcherCorrelationDisambiguatesDuplicates(t *testing.T) {
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	tasks := []Task{
		{ID: "mine", PlannedTask: `{"speechPrompt":"hello","correlationId":"gen-a"}`, Added: base},
		{ID: "theirs", PlannedTask: `{"speechPrompt":"hello","correlationId":"gen-b"}`, Added: base.Add(time.Minute)},
	}
	got, ok := Matcher{Field: FieldSpeechPrompt, Key: "hello", CorrelationID: "gen-a"}.Select(tasks)
	if !ok || got.ID != "mine" {
		t.Fatalf("expected correlated task, got %+v %v", got, ok)
	}

	got, ok = Matcher{Field: FieldSpeechPrompt, Key: "hello"}.Select(tasks)
	if !ok || got.ID != "theirs" {
		t.Fatalf("without correlation the newest identical task wins, got %+v %v", got, ok)
	}
}

func TestMatcherCorrelationFallsBackToKey(t *testing.T) {
	tasks := []Task{
		{ID: "stripped", PlannedTask: `{"speechPrompt":"hello"}`},
		{ID: "foreign", PlannedTask: `{"speechPrompt":"hello","correlationId":"gen-b"}`},
	}
	got, ok := Matcher{Field: FieldSpeechPrompt, Key: "hello", CorrelationID: "gen-a"}.Select(tasks)
	if !ok || got.ID != "stripped" {
		t.Fatalf("expected fallback to uncorrelated task, got %+v %v", got, ok)
	}
}

func TestMatcherIgnoresNonStringField(t *testing.T) {
	tasks := []Task{{ID: "num", PlannedTask: `{"speechPrompt":5}`}}
	if _, ok := (Matcher{Field: FieldSpeechPrompt, Key: "5"}).Select(tasks); ok {
		t.Fatalf("expected no match for numeric field")
	}
}
