package relay

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"courier/internal/domain"
)

// OpenStream subscribes to a conversation's server-sent event stream.
// Events arrive on the returned channel, which is closed when the server
// disconnects or ctx is cancelled. Malformed frames are skipped; a bad
// frame must not end the subscription.
func (c *HTTP) OpenStream(
	ctx context.Context,
	conversation domain.ConversationID,
) (<-chan domain.Event, error) {
	path := "/v1/conversations/" + url.PathEscape(conversation.String()) + "/stream"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.Base+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		resp.Body.Close()
		return nil, &statusError{method: http.MethodGet, url: c.Base + path, status: resp.StatusCode, text: resp.Status}
	}

	events := make(chan domain.Event)
	go func() {
		defer close(events)
		defer resp.Body.Close()

		sc := bufio.NewScanner(resp.Body)
		sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

		var data strings.Builder
		for sc.Scan() {
			line := sc.Text()
			switch {
			case strings.HasPrefix(line, "data:"):
				data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
			case line == "":
				// Blank line terminates one event frame.
				if data.Len() == 0 {
					continue
				}
				var ev domain.Event
				err := json.Unmarshal([]byte(data.String()), &ev)
				data.Reset()
				if err != nil {
					continue
				}
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			default:
				// Comments (":keepalive") and unknown fields are ignored.
			}
		}
	}()
	return events, nil
}
