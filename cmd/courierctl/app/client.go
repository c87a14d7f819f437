package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/autopeer-io/skycourier/internal/gateway"
	"github.com/autopeer-io/skycourier/internal/mission"
	"github.com/autopeer-io/skycourier/internal/telemetry"
)

// client talks to the gateway of one courier-server.
type client struct {
	base string
	http *http.Client
}

func newClient(base string) *client {
	return &client{base: strings.TrimRight(base, "/"), http: &http.Client{}}
}

// Track starts a mission and blocks until it ends. A mission that ran and
// failed is reported in the response, not as an error.
func (c *client) Track(ctx context.Context, lat, lon float64) (*gateway.TrackResponse, error) {
	form := url.Values{}
	form.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	form.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/track", strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp gateway.TrackResponse
	if err := c.do(req, &resp, http.StatusOK, http.StatusBadRequest, http.StatusConflict); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *client) Status(ctx context.Context) (*mission.Status, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/mission", nil)
	if err != nil {
		return nil, err
	}
	var st mission.Status
	if err := c.do(req, &st, http.StatusOK); err != nil {
		return nil, err
	}
	return &st, nil
}

// Abort cancels the mission in flight. It reports false when none is.
func (c *client) Abort(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/mission/abort", nil)
	if err != nil {
		return false, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted:
		return true, nil
	case http.StatusConflict:
		return false, nil
	default:
		return false, fmt.Errorf("abort: unexpected status %s", resp.Status)
	}
}

// Watch calls fn for every telemetry frame until ctx is done, fn returns
// false, or the server closes the stream.
func (c *client) Watch(ctx context.Context, fn func(telemetry.Frame) bool) error {
	u, err := url.Parse(c.base + "/ws")
	if err != nil {
		return err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	for {
		var f telemetry.Frame
		if err := conn.ReadJSON(&f); err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("telemetry: %w", err)
		}
		if !fn(f) {
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return nil
		}
	}
}

func (c *client) do(req *http.Request, out any, accept ...int) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	for _, code := range accept {
		if resp.StatusCode == code {
			return json.NewDecoder(resp.Body).Decode(out)
		}
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("%s %s: %s: %s", req.Method, req.URL.Path, resp.Status, strings.TrimSpace(string(body)))
}
