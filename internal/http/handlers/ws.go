// Live list streaming over websockets.
//
// A stream endpoint upgrades the connection and then writes one JSON array
// frame per snapshot: the full current list first, then again after every
// change. The client never sends data frames; its close frame, a read error,
// or server shutdown ends the stream and releases the store subscription.
package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/tbourn/go-gamesocial-backend/internal/http/middleware"
	"github.com/tbourn/go-gamesocial-backend/internal/services"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	wsReadLimit  = 512
)

// Origins are not checked here: the stream endpoints are read-only and
// authenticate with bearer tokens rather than cookies.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// isUpgrade reports whether the request asks for a websocket.
func isUpgrade(c *gin.Context) bool {
	return websocket.IsWebSocketUpgrade(c.Request)
}

// serveStream upgrades c and pumps st until either side goes away. open is
// called before the upgrade so service errors still get a JSON envelope;
// the context it receives is cancelled when the socket closes.
func serveStream[T any, F any](c *gin.Context, open func(ctx context.Context) (*services.Stream[T], error), frame func(ctx context.Context, items []T) F) {
	if !isUpgrade(c) {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "websocket upgrade required")
		return
	}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	st, err := open(ctx)
	if err != nil {
		failErr(c, err, ErrCodeStreamFailed)
		return
	}
	defer st.Close()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// the upgrader already wrote the HTTP error
		middleware.LoggerFrom(c).Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()
	lg := middleware.LoggerFrom(c)

	// Reader: only control frames are expected; any error ends the session.
	go func() {
		defer cancel()
		conn.SetReadLimit(wsReadLimit)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					lg.Debug().Msg("websocket pong timeout")
				}
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case items, ok := <-st.C:
			if !ok {
				if err := st.Err(); err != nil {
					lg.Warn().Err(err).Msg("live stream ended")
					closeWith(conn, websocket.CloseInternalServerErr, "stream ended")
				} else {
					closeWith(conn, websocket.CloseNormalClosure, "")
				}
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := conn.WriteJSON(frame(ctx, items)); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		case <-ctx.Done():
			closeWith(conn, websocket.CloseGoingAway, "")
			return
		}
	}
}

func closeWith(conn *websocket.Conn, code int, text string) {
	_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
}

// asArray keeps nil slices encoding as [] on the wire.
func asArray[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
