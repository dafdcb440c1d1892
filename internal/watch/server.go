// Package watch serves live collapse runs to browsers over WebSocket.
//
// A viewer connects to /ws?width=W&height=H&seed=S and receives one text
// frame per collapse step followed by a final status frame, after which the
// server closes the connection.
package watch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lawnchairsociety/terraingen/internal/archive"
	"github.com/lawnchairsociety/terraingen/internal/config"
	"github.com/lawnchairsociety/terraingen/internal/logger"
	"github.com/lawnchairsociety/terraingen/internal/terrain"
	"github.com/lawnchairsociety/terraingen/internal/wfc"
)

// Server streams collapse runs to WebSocket viewers.
type Server struct {
	cfg        config.WatchConfig
	defaults   config.MapConfig
	rules      *wfc.Rules
	archive    *archive.Archive // optional
	limiter    *ViewerLimiter
	upgrader   websocket.Upgrader
	httpServer *http.Server
}

// NewServer creates a viewer server. Runs are recorded in arc when it is non-nil.
func NewServer(cfg config.WatchConfig, defaults config.MapConfig, rules *wfc.Rules, arc *archive.Archive) *Server {
	if rules == nil {
		rules = wfc.DefaultRules()
	}
	s := &Server{
		cfg:      cfg,
		defaults: defaults,
		rules:    rules,
		archive:  arc,
		limiter:  NewViewerLimiter(cfg),
	}
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}
	return s
}

// Handler returns the HTTP routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocketUpgrade)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		stats := s.limiter.Stats()
		fmt.Fprintf(w, "ok viewers=%d clients=%d cells=%d\n", stats.Viewers, stats.Clients, stats.Cells)
	})
	return mux
}

// Start listens on address until Shutdown is called.
func (s *Server) Start(address string) error {
	s.httpServer.Addr = address

	logger.Info("Watch server listening", "address", address)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting viewers and waits for the listener to close.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// request is a parsed and bounds-checked /ws query.
type request struct {
	width, height int
	seed          int64
}

func (s *Server) parseRequest(r *http.Request) (request, error) {
	q := r.URL.Query()
	req := request{width: s.defaults.Width, height: s.defaults.Height, seed: s.defaults.Seed}

	intParam := func(name string, dst *int) error {
		raw := q.Get(name)
		if raw == "" {
			return nil
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("%s must be an integer", name)
		}
		*dst = v
		return nil
	}

	if err := intParam("width", &req.width); err != nil {
		return req, err
	}
	if err := intParam("height", &req.height); err != nil {
		return req, err
	}
	if raw := q.Get("seed"); raw != "" {
		seed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return req, fmt.Errorf("seed must be an integer")
		}
		req.seed = seed
	}

	if req.width <= 0 || req.height <= 0 {
		return req, fmt.Errorf("size must be positive, got %dx%d", req.width, req.height)
	}
	if (s.cfg.MaxWidth > 0 && req.width > s.cfg.MaxWidth) || (s.cfg.MaxHeight > 0 && req.height > s.cfg.MaxHeight) {
		return req, fmt.Errorf("size %dx%d exceeds the %dx%d limit", req.width, req.height, s.cfg.MaxWidth, s.cfg.MaxHeight)
	}
	return req, nil
}

// handleWebSocketUpgrade validates the query, reserves a slot and upgrades.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseRequest(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	clientIP := s.limiter.ClientIP(r)
	lease, err := s.limiter.TryAcquire(clientIP, req.width*req.height)
	if err != nil {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", clientIP,
			"cells", req.width*req.height,
			"reason", err)
		http.Error(w, "Too many viewers. Please try again later.", http.StatusTooManyRequests)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		lease.Release()
		return
	}

	go s.serveViewer(conn, clientIP, req, lease)
}

// serveViewer runs one generation and streams it to the viewer.
func (s *Server) serveViewer(conn *websocket.Conn, clientIP string, req request, lease *Lease) {
	viewer := NewViewer(conn)
	defer func() {
		viewer.Close()
		lease.Release()
	}()
	go viewer.Listen()

	logger.Info("Viewer connected",
		"client_ip", clientIP,
		"width", req.width,
		"height", req.height,
		"seed", req.seed)

	delay := s.cfg.FrameDelay()
	attempt := 0
	var current *wfc.Grid

	gen := terrain.NewGenerator(&terrain.Options{
		Width:      req.width,
		Height:     req.height,
		Seed:       req.seed,
		MaxRetries: s.defaults.MaxRetries,
		Rules:      s.rules,
		OnStep: func(grid *wfc.Grid, e wfc.StepEvent) {
			if grid != current {
				current = grid
				attempt++
			}
			if viewer.Gone() {
				return
			}
			if err := viewer.WriteLine(StepFrame(grid, attempt, e)); err != nil {
				logger.Debug("Viewer write failed", "client_ip", clientIP, "error", err)
				return
			}
			if delay > 0 {
				time.Sleep(delay)
			}
		},
	})

	result, genErr := gen.Generate()
	if result == nil {
		// The grid could not even be built, so no attempt ran
		logger.Error("Viewer run failed", "client_ip", clientIP, "error", genErr)
		viewer.WriteLine(StatusFrame(StateFailed, req.seed, 0, 0, "", genErr))
		return
	}

	runID := ""
	if s.archive != nil {
		run := archive.NewRun(result)
		if err := s.archive.SaveRun(run); err != nil {
			logger.Error("Failed to archive run", "error", err)
		} else {
			runID = run.ID.String()
		}
	}

	grid := result.Grid
	viewer.WriteLine(StatusFrame(grid.State().String(), result.Seed, result.Attempts, grid.Steps(), runID, genErr))

	logger.Info("Viewer run finished",
		"client_ip", clientIP,
		"state", grid.State().String(),
		"seed", result.Seed,
		"attempts", result.Attempts,
		"frames", viewer.Frames(),
		"disconnected", viewer.Gone())
}
