package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// maxErrorBody bounds how much of a refused stream's body is read for its message.
const maxErrorBody = 64 << 10

// StreamLogs subscribes to the server-sent event stream of new log entries and
// calls fn with each event's data. It returns when ctx is cancelled, the
// server closes the stream, or fn returns an error.
func (c *Client) StreamLogs(ctx context.Context, fn func(data string) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/logs/stream", nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	// The stream stays open indefinitely, so the per-request timeout must not apply.
	hc := *c.httpClient
	hc.Timeout = 0

	resp, err := hc.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return transportError(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return statusError(resp.StatusCode, body)
	}
	c.logger.Debug("log stream connected")

	err = readEvents(bufio.NewScanner(resp.Body), fn)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// readEvents dispatches each blank-line-terminated event's joined data lines.
// Comment lines and fields other than data are ignored.
func readEvents(sc *bufio.Scanner, fn func(data string) error) error {
	var data []string
	dispatch := func() error {
		if len(data) == 0 {
			return nil
		}
		payload := strings.Join(data, "\n")
		data = data[:0]
		return fn(payload)
	}
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if err := dispatch(); err != nil {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "data:"):
			data = append(data, strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("reading log stream: %w", err)
	}
	return dispatch()
}
