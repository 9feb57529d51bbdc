package web

import (
	"encoding/json"
	"net/http"
	"time"

	"golang.org/x/net/websocket"
)

// statusSocket pushes a monitor snapshot JSON message on every poll tick,
// starting with the current one, until the client goes away.
func statusSocket(monitor Monitor) http.Handler {
	return websocket.Server{Handler: websocket.Handler(func(conn *websocket.Conn) {
		defer conn.Close()
		// The HTTP server's read/write deadlines were armed before the
		// hijack; clear them for the long-lived socket.
		_ = conn.SetDeadline(time.Time{})

		id, ch := monitor.Watch(4)
		defer monitor.Unwatch(id)

		for snap := range ch {
			b, err := json.Marshal(snap)
			if err != nil {
				return
			}
			if _, err := conn.Write(b); err != nil {
				return
			}
		}
	})}
}
