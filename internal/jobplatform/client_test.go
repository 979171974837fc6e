package jobplatform

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{
		APIToken:     "tok",
		BaseURL:      srv.URL + "/",
		InitialDelay: time.Millisecond,
		PollInterval: time.Millisecond,
		MaxAttempts:  3,
	})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	return client
}

func tasksBody(tasks ...map[string]any) []byte {
	raw, _ := json.Marshal(map[string]any{"job_tasks": tasks})
	return raw
}

func plannedTask(field, value string) string {
	raw, _ := json.Marshal(map[string]string{field: value})
	return string(raw)
}

func TestNewClientRequiresToken(t *testing.T) {
	if _, err := NewClient(Options{APIToken: " "}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("expected ErrMissingToken, got %v", err)
	}
}

func TestSubmitSendsPlannedTask(t *testing.T) {
	var got submitRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/planned_tasks/submit" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Fatalf("missing bearer token")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	})

	err := client.Submit(context.Background(), "job-img", Input{Field: FieldImagePrompt, Value: "a cat with this size 512x512"})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if got.JobID != "job-img" || len(got.Inputs) != 1 {
		t.Fatalf("unexpected request %+v", got)
	}
	if got.Inputs[0] != `{"imagePrompt":"a cat with this size 512x512"}` {
		t.Fatalf("unexpected input %s", got.Inputs[0])
	}
}

func TestSubmitNon2xx(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	err := client.Submit(context.Background(), "job", Input{Field: FieldSpeechPrompt, Value: "hello"})
	if !errors.Is(err, ErrSubmit) {
		t.Fatalf("expected ErrSubmit, got %v", err)
	}
	var se *SubmitError
	if !errors.As(err, &se) || se.Message() != "Failed to submit task: 503" {
		t.Fatalf("unexpected submit error %v", err)
	}
}

func TestSubmitRequiresJobID(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("no request expected")
	})
	if err := client.Submit(context.Background(), "", Input{Field: FieldSpeechPrompt, Value: "x"}); !errors.Is(err, ErrMissingJobID) {
		t.Fatalf("expected ErrMissingJobID, got %v", err)
	}
}

func TestPollSucceedsWhenProofAppears(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		task := map[string]any{
			"_id":          "t1",
			"status":       "pending",
			"planned_task": plannedTask(FieldSpeechPrompt, "hello world"),
			"added":        "2025-01-01T10:00:00Z",
		}
		if n == 2 {
			task["job_proof"] = `{"uploadedFileUrl":" https://cdn.example.com/a.mp3 "}`
		}
		_, _ = w.Write(tasksBody(task))
	})

	out, err := client.Poll(context.Background(), "job", Matcher{Field: FieldSpeechPrompt, Key: "hello world"}, ProofSpeechURL)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if out.State != StateSucceeded || out.URL != "https://cdn.example.com/a.mp3" || out.Attempts != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestPollDeclinedTask(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tasksBody(map[string]any{
			"_id":           "t1",
			"status":        "declined",
			"failureReason": "worker declined",
			"planned_task":  plannedTask(FieldImagePrompt, "k"),
			"job_proof":     `{"imageUrl":"https://ignored"}`,
		}))
	})
	out, err := client.Poll(context.Background(), "job", Matcher{Field: FieldImagePrompt, Key: "k"}, ProofImageURL)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if out.State != StateFailed || out.Detail != "worker declined" {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestPollTimesOutWithoutMatchingTask(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write(tasksBody(map[string]any{
			"status":       "completed",
			"planned_task": plannedTask(FieldImagePrompt, "someone else"),
			"job_proof":    `{"imageUrl":"https://other"}`,
		}))
	})
	out, err := client.Poll(context.Background(), "job", Matcher{Field: FieldImagePrompt, Key: "mine"}, ProofImageURL)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if out.State != StateTimedOut || out.Detail != "No task found for this generation" {
		t.Fatalf("unexpected outcome %+v", out)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 poll requests, got %d", calls)
	}
}

func TestPollRecoversFromTransientError(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write(tasksBody(map[string]any{
			"status":       "completed",
			"planned_task": plannedTask(FieldImagePrompt, "k"),
			"job_proof":    `{"imageUrl":"https://cdn.example.com/x.png"}`,
		}))
	})
	out, err := client.Poll(context.Background(), "job", Matcher{Field: FieldImagePrompt, Key: "k"}, ProofImageURL)
	if err != nil {
		t.Fatalf("Poll error: %v", err)
	}
	if out.State != StateSucceeded || out.Attempts != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestPollErrorOnLastAttempt(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := client.Poll(context.Background(), "job", Matcher{Field: FieldImagePrompt, Key: "k"}, ProofImageURL)
	if !errors.Is(err, ErrPoll) {
		t.Fatalf("expected ErrPoll, got %v", err)
	}
}

func TestPollHonorsCancellation(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(tasksBody())
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := client.Poll(ctx, "job", Matcher{Field: FieldImagePrompt, Key: "k"}, ProofImageURL); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestMaxWait(t *testing.T) {
	client, err := NewClient(Options{APIToken: "tok", InitialDelay: 30 * time.Second})
	if err != nil {
		t.Fatalf("NewClient error: %v", err)
	}
	if client.MaxWait() != 8*time.Minute {
		t.Fatalf("unexpected MaxWait %s", client.MaxWait())
	}
}
