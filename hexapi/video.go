package hexapi

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// VideoURL returns the public replay video URL for a replay hash.
func (c *Client) VideoURL(replayHash string) string {
	return fmt.Sprintf("%s/get_video/%s", c.base(), url.PathEscape(replayHash))
}

// VideoReady probes whether the server has finished rendering the replay
// video. It requests a single byte and inspects the content type: the
// endpoint serves an error document until the MP4 exists. A transport
// error is returned as-is so callers can distinguish "not yet" from
// "could not check".
func (c *Client) VideoReady(ctx context.Context, replayHash string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.VideoURL(replayHash), nil)
	if err != nil {
		return false, err
	}
	req.Header.Set("Range", "bytes=0-0")
	resp, err := c.http().Do(req)
	if err != nil {
		return false, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Warn("failed to close response body", slog.Any("err", err))
		}
	}()
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusPartialContent {
		return false, nil
	}
	ct := resp.Header.Get("Content-Type")
	return strings.HasPrefix(ct, "video/mp4"), nil
}
