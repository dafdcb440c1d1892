package watch

import (
	"errors"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"

	"github.com/lawnchairsociety/terraingen/internal/config"
	"github.com/lawnchairsociety/terraingen/internal/logger"
)

// Reasons a viewer is turned away. All of them are reported as 429.
var (
	ErrTooManyViewers = errors.New("viewer limit reached")
	ErrClientBusy     = errors.New("client already has the maximum number of viewers")
	ErrCellBudget     = errors.New("cell budget exhausted")
)

// LimiterStats is a snapshot of the running viewers.
type LimiterStats struct {
	Viewers int
	Clients int
	Cells   int
}

// ViewerLimiter bounds how many collapse runs are streamed at once.
// Besides counting viewers per client and in total it keeps a budget of
// grid cells, so one large map weighs as much as many small ones.
type ViewerLimiter struct {
	mu      sync.Mutex
	clients map[string]int
	viewers int
	cells   int

	maxPerClient int
	maxViewers   int
	maxCells     int
	trusted      []netip.Prefix
}

// NewViewerLimiter creates a limiter from the watch config. Zero limits mean unlimited.
func NewViewerLimiter(cfg config.WatchConfig) *ViewerLimiter {
	v := &ViewerLimiter{
		clients:      make(map[string]int),
		maxPerClient: cfg.MaxPerIP,
		maxViewers:   cfg.MaxTotal,
		maxCells:     cfg.MaxCells,
	}
	for _, entry := range cfg.TrustedProxies {
		prefix, err := parseProxy(entry)
		if err != nil {
			logger.Warning("Ignoring trusted proxy entry", "entry", entry, "error", err)
			continue
		}
		v.trusted = append(v.trusted, prefix)
	}
	return v
}

func parseProxy(entry string) (netip.Prefix, error) {
	entry = strings.TrimSpace(entry)
	if strings.Contains(entry, "/") {
		prefix, err := netip.ParsePrefix(entry)
		if err != nil {
			return netip.Prefix{}, err
		}
		return prefix.Masked(), nil
	}
	addr, err := netip.ParseAddr(entry)
	if err != nil {
		return netip.Prefix{}, err
	}
	addr = addr.Unmap()
	return netip.PrefixFrom(addr, addr.BitLen()), nil
}

// Lease is one admitted viewer. Release may be called more than once.
type Lease struct {
	limiter *ViewerLimiter
	client  string
	cells   int
	once    sync.Once
}

// TryAcquire admits a viewer of a grid with the given number of cells,
// or returns the reason it cannot be admitted.
func (v *ViewerLimiter) TryAcquire(client string, cells int) (*Lease, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.maxViewers > 0 && v.viewers >= v.maxViewers {
		return nil, ErrTooManyViewers
	}
	if v.maxPerClient > 0 && v.clients[client] >= v.maxPerClient {
		return nil, ErrClientBusy
	}
	if v.maxCells > 0 && v.cells+cells > v.maxCells {
		return nil, ErrCellBudget
	}

	v.clients[client]++
	v.viewers++
	v.cells += cells
	return &Lease{limiter: v, client: client, cells: cells}, nil
}

// Release returns the lease's viewer slot and cells to the limiter.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.limiter.release(l.client, l.cells)
	})
}

func (v *ViewerLimiter) release(client string, cells int) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.clients[client] > 0 {
		v.clients[client]--
		if v.clients[client] == 0 {
			delete(v.clients, client)
		}
	}
	v.viewers--
	v.cells -= cells
}

// Stats returns the current viewer, client and cell counts.
func (v *ViewerLimiter) Stats() LimiterStats {
	v.mu.Lock()
	defer v.mu.Unlock()
	return LimiterStats{Viewers: v.viewers, Clients: len(v.clients), Cells: v.cells}
}

// ClientIP identifies the viewer behind r. Proxy headers are only honored
// when the socket peer is a trusted proxy; the client is then the rightmost
// X-Forwarded-For hop that is not itself trusted.
func (v *ViewerLimiter) ClientIP(r *http.Request) string {
	peer := extractIP(r.RemoteAddr)
	if !v.isTrusted(peer) {
		return peer
	}

	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop != "" && !v.isTrusted(hop) {
				return hop
			}
		}
	}
	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}
	return peer
}

func (v *ViewerLimiter) isTrusted(ip string) bool {
	if len(v.trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range v.trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// extractIP extracts the IP address from a remote address string (ip:port format).
func extractIP(remoteAddr string) string {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return remoteAddr
	}
	return host
}
