package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = maxRequestBodySize

	// maxInFlight bounds concurrent render/execute work per connection.
	// Further requests wait in the read loop.
	maxInFlight = 4
)

// wsMessage is the envelope for both directions of the /ws protocol.
//
// Client requests carry an action of "render" (Document) or "execute"
// (Code, Language) and an ID that is echoed on the reply. The server
// additionally sends "reload" when lessons change and "error" for
// requests it cannot handle.
type wsMessage struct {
	ID       string      `json:"id,omitempty"`
	Action   string      `json:"action"`
	Document string      `json:"document,omitempty"`
	Code     string      `json:"code,omitempty"`
	Language string      `json:"language,omitempty"`
	FilePath string      `json:"filePath,omitempty"`
	Result   interface{} `json:"result,omitempty"`
	Error    string      `json:"error,omitempty"`
}

// wsConn serializes writes to a connection; gorilla/websocket allows one
// concurrent writer.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, msg)
}

func (c *wsConn) sendJSON(v wsMessage) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Printf("[WS] Failed to marshal message: %v", err)
		return
	}
	if err := c.send(data); err != nil {
		log.Printf("[WS] Failed to send message: %v", err)
	}
}

// checkOrigin accepts same-host pages and the configured CORS origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err == nil && u.Host == r.Host {
		return true
	}
	origins := s.config.API.GetCORSOrigins()
	return slices.Contains(origins, "*") || slices.Contains(origins, origin)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{CheckOrigin: s.checkOrigin}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[WS] Upgrade error: %v", err)
		return
	}
	conn.SetReadLimit(maxMessageSize)

	c := &wsConn{conn: conn}
	s.registerConnection(c)

	// In-flight requests are cancelled when the connection goes away.
	ctx, cancel := context.WithCancel(s.ctx)
	var wg sync.WaitGroup
	limiter := rate.NewLimiter(rate.Limit(s.config.API.GetRateLimitRPS()), s.config.API.GetRateLimitBurst())
	slots := make(chan struct{}, maxInFlight)
	defer func() {
		cancel()
		wg.Wait()
		s.unregisterConnection(conn)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[WS] Read error: %v", err)
			}
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			c.sendJSON(wsMessage{Action: "error", Error: "invalid message: " + err.Error()})
			continue
		}
		if s.config.Server.Debug {
			log.Printf("[WS] Received %s (id=%s)", msg.Action, msg.ID)
		}

		if !limiter.Allow() {
			c.sendJSON(wsMessage{ID: msg.ID, Action: "error", Error: "rate limit exceeded"})
			continue
		}

		select {
		case slots <- struct{}{}:
		case <-ctx.Done():
			return
		}
		wg.Add(1)
		go func() {
			defer func() {
				<-slots
				wg.Done()
			}()
			c.sendJSON(s.handleWSMessage(ctx, msg))
		}()
	}
}

func (s *Server) handleWSMessage(ctx context.Context, msg wsMessage) wsMessage {
	reply := wsMessage{ID: msg.ID, Action: msg.Action}
	switch msg.Action {
	case "render":
		resp := renderResponse{Result: s.runner.Renderer.Render(ctx, msg.Document)}
		if resp.Success {
			resp.PreviewID = s.previews.Put(resp.Page)
			resp.PreviewURL = previewURL(resp.PreviewID)
		}
		reply.Result = resp
	case "execute":
		reply.Result = s.runner.Executor.Execute(ctx, msg.Code, msg.Language)
	default:
		reply.Action = "error"
		reply.Error = "unknown action: " + msg.Action
	}
	return reply
}
