package storage

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"highbid/internal/domain"
)

const maxArchiveBytes = 50 << 20

// Archiver copies a completed result from its upstream URL into a Store.
type Archiver struct {
	store  Store
	client *http.Client
}

func NewArchiver(store Store, client *http.Client) *Archiver {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &Archiver{store: store, client: client}
}

// Archive downloads g.ResultURL and returns the storage key it was written to.
func (a *Archiver) Archive(ctx context.Context, g *domain.Generation) (string, error) {
	if g.ResultURL == "" {
		return "", fmt.Errorf("storage: generation %s has no result", g.ID)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.ResultURL, nil)
	if err != nil {
		return "", fmt.Errorf("storage: build request: %w", err)
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("storage: fetch result: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("storage: fetch result: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxArchiveBytes+1))
	if err != nil {
		return "", fmt.Errorf("storage: read result: %w", err)
	}
	if len(data) > maxArchiveBytes {
		return "", fmt.Errorf("storage: result exceeds %d bytes", maxArchiveBytes)
	}

	contentType := resp.Header.Get("Content-Type")
	return a.store.Put(ctx, ArchiveKey(g, contentType), data, contentType)
}

// ArchiveKey lays results out as <kind>/<yyyy>/<mm>/<id><ext>.
func ArchiveKey(g *domain.Generation, contentType string) string {
	created := g.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	return fmt.Sprintf("%s/%s/%s%s", g.Kind, created.UTC().Format("2006/01"), g.ID, extension(g.ResultURL, contentType))
}

func extension(rawURL, contentType string) string {
	if u, err := url.Parse(rawURL); err == nil {
		if ext := strings.ToLower(path.Ext(u.Path)); ext != "" && len(ext) <= 5 {
			return ext
		}
	}
	switch media, _, _ := mime.ParseMediaType(contentType); media {
	case "image/png":
		return ".png"
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	case "audio/mpeg":
		return ".mp3"
	case "audio/wav", "audio/x-wav":
		return ".wav"
	}
	return ".bin"
}
