package arbiter

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/park285/cheese-board/pkg/chessdto"
)

// WatchURL derives the websocket endpoint from the HTTP base URL.
func WatchURL(baseURL, gameID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path += "/watch"
	if gameID != "" {
		q := u.Query()
		q.Set("game_id", gameID)
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Watch streams game snapshots until ctx is done or the server closes the stream.
// A normal close or cancellation returns nil.
func (c *Client) Watch(ctx context.Context, fn func(chessdto.GameState)) error {
	wsURL, err := WatchURL(c.baseURL, c.GameID())
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
	})
	cancel()
	if err != nil {
		return err
	}
	defer conn.Close(websocket.StatusNormalClosure, "bye")

	for {
		var st chessdto.GameState
		if err := wsjson.Read(ctx, conn, &st); err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		fn(st)
	}
}
