package client

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
)

// ErrStreamClosed is returned when the server ends a log stream without a
// done event
var ErrStreamClosed = errors.New("stream closed before the build finished")

// Event is one server-sent event of a build stream
type Event struct {
	Name string
	Data []byte
}

// UploadResponse acknowledges a stored image
type UploadResponse struct {
	OK     bool   `json:"ok"`
	R2Key  string `json:"r2_key"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

// Progress is a runner report on a job
type Progress struct {
	Progress *int   `json:"progress,omitempty"`
	Log      string `json:"log,omitempty"`
	Status   string `json:"status,omitempty"`
}

// ProgressResponse acknowledges a progress report
type ProgressResponse struct {
	OK       bool   `json:"ok"`
	Status   string `json:"status"`
	Progress int    `json:"progress"`
}

// DownloadFile writes one artifact of a job to w
func (c *Client) DownloadFile(ctx context.Context, id, name string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, buildPath(id, "/file/"+name), w)
}

// DownloadBundle writes the tar.xz archive of all artifacts to w
func (c *Client) DownloadBundle(ctx context.Context, id string, w io.Writer) (int64, error) {
	return c.copyTo(ctx, buildPath(id, "/bundle"), w)
}

// DownloadImage writes the final image to w and returns the checksum the
// server announced for it
func (c *Client) DownloadImage(ctx context.Context, id string, w io.Writer) (int64, string, error) {
	resp, err := c.RawGet(ctx, buildPath(id, "/iso"), "application/octet-stream")
	if err != nil {
		return 0, "", err
	}
	defer resp.Body.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(w, h), resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("failed to read image: %w", err)
	}
	want := resp.Header.Get("X-ISO-SHA256")
	if got := hex.EncodeToString(h.Sum(nil)); want != "" && !strings.EqualFold(want, got) {
		return n, got, fmt.Errorf("image checksum mismatch: server announced %s, received %s", want, got)
	}
	return n, want, nil
}

func (c *Client) copyTo(ctx context.Context, path string, w io.Writer) (int64, error) {
	resp, err := c.RawGet(ctx, path, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("failed to read response: %w", err)
	}
	return n, nil
}

// UploadImage streams an image file to the job. The checksum is computed
// first so the server can verify the received bytes.
func (c *Client) UploadImage(ctx context.Context, id string, f *os.File) (*UploadResponse, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat image: %w", err)
	}
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash image: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind image: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, buildPath(id, "/upload-iso"), io.ReadSeeker(f))
	if err != nil {
		return nil, err
	}
	req.ContentLength = info.Size()
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-ISO-Size", strconv.FormatInt(info.Size(), 10))
	req.Header.Set("X-ISO-SHA256", hex.EncodeToString(h.Sum(nil)))
	c.authorize(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload failed: %w", err)
	}
	defer resp.Body.Close()

	var out UploadResponse
	if err := handleResponse(resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReportProgress posts a runner progress report
func (c *Client) ReportProgress(ctx context.Context, id string, p *Progress) (*ProgressResponse, error) {
	var resp ProgressResponse
	if err := c.Post(ctx, buildPath(id, "/progress"), p, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Stream follows the event stream of a job and calls fn for every event.
// It returns nil once the done event has been handled.
func (c *Client) Stream(ctx context.Context, id string, fn func(Event) error) error {
	resp, err := c.RawGet(ctx, buildPath(id, "/stream"), "text/event-stream")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var ev Event
	var data bytes.Buffer
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if ev.Name == "" && data.Len() == 0 {
				continue
			}
			ev.Data = bytes.Clone(data.Bytes())
			if ev.Name == "" {
				ev.Name = "message"
			}
			if err := fn(ev); err != nil {
				return err
			}
			if ev.Name == "done" {
				return nil
			}
			ev = Event{}
			data.Reset()
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			ev.Name = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("failed to read stream: %w", err)
	}
	return ErrStreamClosed
}
