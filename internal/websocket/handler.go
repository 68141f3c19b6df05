package websocket

import (
	"log/slog"
	"net/http"
	"strconv"

	ws "github.com/coder/websocket"
)

// HandleWebSocket upgrades the request and streams events until the client
// disconnects. The optional "plugin" query parameter narrows the stream to
// one plugin.
func HandleWebSocket(hub *Hub, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var pluginID int64
		if v := r.URL.Query().Get("plugin"); v != "" {
			id, err := strconv.ParseInt(v, 10, 64)
			if err != nil || id <= 0 {
				http.Error(w, "invalid plugin id", http.StatusBadRequest)
				return
			}
			pluginID = id
		}

		conn, err := ws.Accept(w, r, &ws.AcceptOptions{InsecureSkipVerify: true})
		if err != nil {
			logger.Warn("websocket accept failed", "error", err)
			return
		}
		logger.Debug("websocket connected", "plugin_id", pluginID)

		NewClient(hub, conn, pluginID).Run(r.Context())
	}
}
