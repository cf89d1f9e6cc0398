// Package fetch implements the per-URL image fetch primitive: transport
// limits, content-type checks, streaming writes, and file housekeeping for
// the acquisition engine.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const dirPerm os.FileMode = 0o755

// extByType maps accepted image content types to the extension used on disk.
var extByType = map[string]string{
	"image/jpeg": ".jpg",
	"image/jpg":  ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
	"image/bmp":  ".bmp",
}

// Saver downloads single image URLs to disk.
type Saver struct {
	client   *resty.Client
	minBytes int64
	maxBytes int64
}

// SaverOptions tunes a Saver.
type SaverOptions struct {
	Timeout   time.Duration
	UserAgent string
	MinBytes  int64
	MaxBytes  int64
}

// NewSaver builds a Saver with a shared resty transport.
func NewSaver(opts SaverOptions) *Saver {
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = 20 << 20
	}

	client := resty.New().
		SetTimeout(opts.Timeout).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5)).
		SetDoNotParseResponse(true)
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Saver{
		client:   client,
		minBytes: opts.MinBytes,
		maxBytes: opts.MaxBytes,
	}
}

// Client exposes the underlying resty client so tests can swap transports.
func (s *Saver) Client() *resty.Client {
	return s.client
}

// Save downloads url into dir under baseName plus a content-type derived
// extension, returning the final path. Partial files are removed on any
// failure. Only https URLs are accepted.
func (s *Saver) Save(ctx context.Context, url, dir, baseName string) (string, error) {
	if !strings.HasPrefix(url, "https://") {
		return "", fmt.Errorf("refusing non-https url %q", url)
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return "", fmt.Errorf("ensure dir: %w", err)
	}

	resp, err := s.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("get %s: %w", url, err)
	}
	body := resp.RawBody()
	defer body.Close()

	if resp.StatusCode() != http.StatusOK {
		return "", fmt.Errorf("get %s: http status %d", url, resp.StatusCode())
	}

	contentType := resp.Header().Get("Content-Type")
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		contentType = mediaType
	}
	ext, ok := extByType[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %q for %s", contentType, url)
	}
	if length := resp.RawResponse.ContentLength; length > 0 && length > s.maxBytes {
		return "", fmt.Errorf("content length %d exceeds limit %d for %s", length, s.maxBytes, url)
	}

	// Stream through a temp file so a failed download never leaves a
	// partially written image under the final name.
	tmp, err := os.CreateTemp(dir, ".part-"+uuid.NewString()+"-*")
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	tmpName := tmp.Name()

	written, err := io.Copy(tmp, io.LimitReader(body, s.maxBytes+1))
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write %s: %w", url, err)
	}
	if written > s.maxBytes {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("download exceeds %d bytes for %s", s.maxBytes, url)
	}
	if written < s.minBytes {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("download of %d bytes below minimum %d for %s", written, s.minBytes, url)
	}

	final := filepath.Join(dir, baseName+ext)
	if err := os.Rename(tmpName, final); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("rename temp: %w", err)
	}
	return final, nil
}

// SaveValid downloads url and keeps the file only if it passes the image
// validity check. Returns the final path on success.
func (s *Saver) SaveValid(ctx context.Context, url, dir, baseName string) (string, error) {
	path, err := s.Save(ctx, url, dir, baseName)
	if err != nil {
		return "", err
	}
	if err := ValidImage(path); err != nil {
		if removeErr := os.Remove(path); removeErr != nil {
			slog.Debug("remove invalid image", slog.String("path", path), slog.Any("error", removeErr))
		}
		return "", err
	}
	return path, nil
}
