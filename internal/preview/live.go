package preview

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
)

// liveUpgrader accepts the same-origin websocket upgrade for a project's
// live-reload channel. CheckOrigin is permissive because the preview
// surface is already served from a sandboxed, per-project hostname.
var liveUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// liveSubscribers tracks one connection set per project so a reload notice
// reaches every open preview tab for that project and no other.
type liveSubscribers struct {
	mu    sync.Mutex
	conns map[string]map[*websocket.Conn]struct{}
}

func newLiveSubscribers() *liveSubscribers {
	return &liveSubscribers{conns: make(map[string]map[*websocket.Conn]struct{})}
}

func (l *liveSubscribers) add(projectID string, c *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.conns[projectID] == nil {
		l.conns[projectID] = make(map[*websocket.Conn]struct{})
	}
	l.conns[projectID][c] = struct{}{}
}

func (l *liveSubscribers) remove(projectID string, c *websocket.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.conns[projectID], c)
}

// notify pushes a reload message to every subscriber of projectID. Dead
// connections are dropped silently; the next read loop will clean them up.
func (l *liveSubscribers) notify(projectID string) {
	l.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(l.conns[projectID]))
	for c := range l.conns[projectID] {
		conns = append(conns, c)
	}
	l.mu.Unlock()

	for _, c := range conns {
		c.WriteMessage(websocket.TextMessage, []byte("reload"))
	}
}

// ServeLive upgrades GET /~live?project={projectId} to a websocket that
// receives a "reload" text frame every time that project's files are
// re-uploaded.
func (s *Store) ServeLive(w http.ResponseWriter, r *http.Request) {
	projectID := r.URL.Query().Get("project")
	if projectID == "" {
		http.Error(w, "missing project", http.StatusBadRequest)
		return
	}

	conn, err := liveUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	s.live.add(projectID, conn)
	defer s.live.remove(projectID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
