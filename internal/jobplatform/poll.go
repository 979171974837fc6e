package jobplatform

import (
	"context"
	"fmt"
	"time"
)

// State is the terminal classification of a poll.
type State string

const (
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
	StateTimedOut  State = "timed_out"
)

// Timeout details.
const (
	DetailNoTask     = "No task found for this generation"
	DetailUnfinished = "Task did not finish in time"
)

// Outcome is what a poll loop settled on.
type Outcome struct {
	State    State
	URL      string
	Detail   string
	TaskID   string
	Attempts int
}

// Poll waits for the initial delay and then checks the job's tasks until the
// matched task fails, exposes a result URL in field, or attempts run out.
// A failed request consumes an attempt; on the last attempt it is returned as
// ErrPoll. The worst case duration is MaxWait.
func (c *Client) Poll(ctx context.Context, jobID string, m Matcher, field string) (Outcome, error) {
	return c.poll(ctx, jobID, m, field, c.initialDelay)
}

// Resume polls a task submitted by an earlier process, skipping the warm-up.
func (c *Client) Resume(ctx context.Context, jobID string, m Matcher, field string) (Outcome, error) {
	return c.poll(ctx, jobID, m, field, 0)
}

func (c *Client) poll(ctx context.Context, jobID string, m Matcher, field string, delay time.Duration) (Outcome, error) {
	if err := sleep(ctx, delay); err != nil {
		return Outcome{}, err
	}

	log := c.logger.With().Str("job_id", jobID).Str("match", m.Key).Logger()
	matched := false
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		last := attempt == c.maxAttempts

		tasks, err := c.Applicants(ctx, jobID)
		if err != nil {
			if ctx.Err() != nil {
				return Outcome{Attempts: attempt}, ctx.Err()
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("jobplatform poll request failed")
			if last {
				return Outcome{Attempts: attempt}, fmt.Errorf("%w: %v", ErrPoll, err)
			}
			if err := sleep(ctx, c.pollInterval); err != nil {
				return Outcome{Attempts: attempt}, err
			}
			continue
		}

		task, ok := m.Select(tasks)
		if ok {
			matched = true
			if task.Failed() {
				log.Info().Str("task_id", task.ID).Str("status", task.Status).Str("reason", task.FailureDetail()).Msg("jobplatform task failed")
				return Outcome{State: StateFailed, Detail: task.FailureDetail(), TaskID: task.ID, Attempts: attempt}, nil
			}
			if url := task.ResultURL(field); url != "" {
				log.Debug().Str("task_id", task.ID).Int("attempt", attempt).Msg("jobplatform task finished")
				return Outcome{State: StateSucceeded, URL: url, TaskID: task.ID, Attempts: attempt}, nil
			}
			log.Debug().Str("task_id", task.ID).Str("status", task.Status).Int("attempt", attempt).Msg("jobplatform task in progress")
		} else {
			log.Debug().Int("attempt", attempt).Msg("jobplatform task not listed yet")
		}

		if !last {
			if err := sleep(ctx, c.pollInterval); err != nil {
				return Outcome{Attempts: attempt}, err
			}
		}
	}

	detail := DetailUnfinished
	if !matched {
		detail = DetailNoTask
	}
	return Outcome{State: StateTimedOut, Detail: detail, Attempts: c.maxAttempts}, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil || d <= 0 {
		return err
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
