package credentials

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"highbid/internal/infra"
	"highbid/internal/sqlinline"
)

// ProviderJobPlatform is the integration_tokens row for the task platform.
const ProviderJobPlatform = "job_platform"

// Platform holds the upstream credential and the job ids that route image and
// speech tasks. Job ids live in the row's properties.
type Platform struct {
	Token       string
	ImageJobID  string
	SpeechJobID string
}

type properties struct {
	ImageJobID  string `json:"image_job_id,omitempty"`
	SpeechJobID string `json:"speech_job_id,omitempty"`
}

type Store struct {
	sql infra.SQLExecutor
}

func NewStore(sql infra.SQLExecutor) *Store {
	return &Store{sql: sql}
}

// Platform returns the stored credentials. A missing row is not an error.
func (s *Store) Platform(ctx context.Context) (Platform, error) {
	var token, raw string
	if err := s.sql.QueryRow(ctx, sqlinline.QSelectIntegrationToken, ProviderJobPlatform).Scan(&token, &raw); err != nil {
		if infra.IsNoRows(err) {
			return Platform{}, nil
		}
		return Platform{}, err
	}
	var props properties
	if strings.TrimSpace(raw) != "" {
		if err := json.Unmarshal([]byte(raw), &props); err != nil {
			return Platform{}, fmt.Errorf("decode %s properties: %w", ProviderJobPlatform, err)
		}
	}
	return Platform{
		Token:       strings.TrimSpace(token),
		ImageJobID:  props.ImageJobID,
		SpeechJobID: props.SpeechJobID,
	}, nil
}

// SetPlatform stores the token. Blank job ids keep the previously stored ones.
func (s *Store) SetPlatform(ctx context.Context, p Platform) error {
	token := strings.TrimSpace(p.Token)
	if token == "" {
		return errors.New("job platform token is required")
	}
	raw, err := json.Marshal(properties{
		ImageJobID:  strings.TrimSpace(p.ImageJobID),
		SpeechJobID: strings.TrimSpace(p.SpeechJobID),
	})
	if err != nil {
		return err
	}
	_, err = s.sql.Exec(ctx, sqlinline.QUpsertIntegrationToken, ProviderJobPlatform, token, string(raw))
	return err
}

// Resolve fills blanks in cfg from the stored row. Environment values win.
func (s *Store) Resolve(ctx context.Context, cfg *infra.PlatformConfig) error {
	if cfg.APIToken != "" && cfg.ImageJobID != "" && cfg.SpeechJobID != "" {
		return nil
	}
	stored, err := s.Platform(ctx)
	if err != nil {
		return err
	}
	if cfg.APIToken == "" {
		cfg.APIToken = stored.Token
	}
	if cfg.ImageJobID == "" {
		cfg.ImageJobID = stored.ImageJobID
	}
	if cfg.SpeechJobID == "" {
		cfg.SpeechJobID = stored.SpeechJobID
	}
	if cfg.APIToken == "" {
		return errors.New("job platform token missing: set JOB_PLATFORM_API_TOKEN or run cmd/platformkey")
	}
	return nil
}
