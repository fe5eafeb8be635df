// Package server serves the tutorial: lesson pages, the exercise and
// progress API, rendered previews, and a WebSocket for live rendering
// and reload notifications.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/livetemplate/qmdtutor"
	"github.com/livetemplate/qmdtutor/internal/cache"
	"github.com/livetemplate/qmdtutor/internal/chunk"
	"github.com/livetemplate/qmdtutor/internal/config"
	"github.com/livetemplate/qmdtutor/internal/progress"
	"github.com/livetemplate/qmdtutor/internal/render"
)

// Server is the tutorial HTTP server.
type Server struct {
	config   *config.Config
	catalog  *qmdtutor.Catalog
	runner   *qmdtutor.Runner
	tracker  *progress.Tracker
	previews *cache.MemoryCache
	sessions *sessionStore
	pages    *pageRenderer

	connections map[*websocket.Conn]*wsConn
	connMu      sync.RWMutex

	watcher *Watcher

	ctx    context.Context
	cancel context.CancelFunc

	handlerOnce   sync.Once
	handler       http.Handler
	rateLimitDone <-chan struct{}
}

// New creates a server over catalog. Progress is written through tracker.
func New(cfg *config.Config, catalog *qmdtutor.Catalog, tracker *progress.Tracker) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	ctx, cancel := context.WithCancel(context.Background())
	runner := qmdtutor.NewRunner(
		render.New(render.WithDelay(cfg.GetRenderDelay())),
		chunk.NewExecutor(chunk.WithDelay(cfg.GetExecDelay())),
	)
	return &Server{
		config:      cfg,
		catalog:     catalog,
		runner:      runner,
		tracker:     tracker,
		previews:    cache.NewMemoryCache(cfg.GetPreviewTTL()),
		sessions:    newSessionStore(catalog),
		pages:       newPageRenderer(),
		connections: make(map[*websocket.Conn]*wsConn),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Catalog returns the lesson catalog.
func (s *Server) Catalog() *qmdtutor.Catalog { return s.catalog }

// routes registers all handlers on a new mux.
func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /lessons/{id}", s.handleLessonPage)
	mux.HandleFunc("GET /playground", s.handlePlayground)
	mux.HandleFunc("GET /preview/{id}", s.handlePreview)
	mux.Handle("GET /assets/", assetHandler())
	mux.HandleFunc("GET /ws", s.handleWebSocket)

	api := http.NewServeMux()
	api.HandleFunc("POST /api/render", s.handleRender)
	api.HandleFunc("POST /api/execute", s.handleExecute)
	api.HandleFunc("GET /api/lessons", s.handleListLessons)
	api.HandleFunc("GET /api/lessons/{id}", s.handleGetLesson)
	api.HandleFunc("GET /api/progress", s.handleGetProgress)
	api.HandleFunc("DELETE /api/progress", s.handleResetProgress)
	api.HandleFunc("PUT /api/progress/{lessonID}", s.handleCompleteLesson)
	api.HandleFunc("DELETE /api/progress/{lessonID}", s.handleUncompleteLesson)
	api.HandleFunc("GET /api/exercises/{id}", s.handleExerciseState)
	api.HandleFunc("POST /api/exercises/{id}/{action}", s.handleExerciseAction)

	mux.Handle("/api/", s.apiMiddleware(api))
	return mux
}

// apiMiddleware applies CORS and rate limiting to the API routes.
func (s *Server) apiMiddleware(next http.Handler) http.Handler {
	rl, done := RateLimitMiddleware(s.ctx, s.config.API.GetRateLimitRPS(), s.config.API.GetRateLimitBurst(), s.config.API.GetMaxTrackedIPs())
	s.rateLimitDone = done
	return CORSMiddleware(s.config.API.GetCORSOrigins())(rl(next))
}

// Handler returns the complete handler with security headers and
// compression applied. It is built once.
func (s *Server) Handler() http.Handler {
	s.handlerOnce.Do(func() {
		s.handler = WithCompression(SecurityHeadersMiddleware()(s.routes()))
	})
	return s.handler
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.Handler().ServeHTTP(w, r)
}

// EnableWatch reloads the catalog when lesson files under dir change.
func (s *Server) EnableWatch(dir string) error {
	watcher, err := NewWatcher(dir, s.reload, s.config.Server.Debug)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	s.watcher = watcher
	watcher.Start()
	log.Printf("[Server] Watching %s for changes", dir)
	return nil
}

// reload re-reads the catalog and tells connected browsers to refresh.
// A failed reload keeps the previous lessons.
func (s *Server) reload(filePath string) error {
	if err := s.catalog.Reload(); err != nil {
		return err
	}
	s.tracker.SetLessons(s.catalog.IDs())
	s.sessions.reset()
	log.Printf("[Server] Reloaded %d lessons (%s changed)", s.catalog.Len(), filePath)
	s.BroadcastReload(filePath)
	return nil
}

// StopWatch stops the file watcher, if any.
func (s *Server) StopWatch() {
	if s.watcher != nil {
		s.watcher.Stop()
	}
}

// Close stops background work: the watcher, the preview cache cleanup
// and the rate limiter.
func (s *Server) Close() error {
	s.StopWatch()
	s.cancel()
	s.previews.Stop()
	if s.rateLimitDone != nil {
		<-s.rateLimitDone
	}

	s.connMu.Lock()
	for conn := range s.connections {
		conn.Close()
	}
	s.connections = make(map[*websocket.Conn]*wsConn)
	s.connMu.Unlock()
	return nil
}

// registerConnection tracks a WebSocket connection for broadcasts.
func (s *Server) registerConnection(c *wsConn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.connections[c.conn] = c
	if s.config.Server.Debug {
		log.Printf("[Server] Registered connection (total: %d)", len(s.connections))
	}
}

// unregisterConnection stops tracking a connection.
func (s *Server) unregisterConnection(conn *websocket.Conn) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	delete(s.connections, conn)
	if s.config.Server.Debug {
		log.Printf("[Server] Unregistered connection (total: %d)", len(s.connections))
	}
}

// ConnectionCount returns the number of open WebSocket connections.
func (s *Server) ConnectionCount() int {
	s.connMu.RLock()
	defer s.connMu.RUnlock()
	return len(s.connections)
}

// BroadcastReload tells every connected browser to reload.
func (s *Server) BroadcastReload(filePath string) {
	msg, err := json.Marshal(wsMessage{Action: "reload", FilePath: filePath})
	if err != nil {
		log.Printf("[Server] Failed to marshal reload message: %v", err)
		return
	}

	s.connMu.RLock()
	conns := make([]*wsConn, 0, len(s.connections))
	for _, c := range s.connections {
		conns = append(conns, c)
	}
	s.connMu.RUnlock()

	for _, c := range conns {
		if err := c.send(msg); err != nil {
			log.Printf("[Server] Failed to send reload: %v", err)
		}
	}
	if s.config.Server.Debug {
		log.Printf("[Server] Broadcast reload to %d connection(s)", len(conns))
	}
}
