package tracker

import (
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// Host serves a Link to remote clients over the websocket wire format used by
// WSLink. Backed by a DummyLink it is a tracker simulator for bench testing
// the experiment on a machine without a tracker.
type Host struct {
	backend  Link
	upgrader websocket.Upgrader
	logger   zerolog.Logger

	// One client drives the tracker at a time.
	mu sync.Mutex

	connMu sync.Mutex
	conns  map[*websocket.Conn]struct{}
}

// NewHost returns a host exposing backend.
func NewHost(backend Link, logger zerolog.Logger) *Host {
	return &Host{
		backend: backend,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		logger: logger.With().Str("component", "tracker-host").Logger(),
		conns:  make(map[*websocket.Conn]struct{}),
	}
}

// Drop closes every client connection without a goodbye, as a crashed or
// unplugged tracker would. Clients see a lost link.
func (h *Host) Drop() {
	h.connMu.Lock()
	defer h.connMu.Unlock()
	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

func (h *Host) track(conn *websocket.Conn) func() {
	h.connMu.Lock()
	h.conns[conn] = struct{}{}
	h.connMu.Unlock()
	return func() {
		h.connMu.Lock()
		delete(h.conns, conn)
		h.connMu.Unlock()
	}
}

// ServeHTTP upgrades the request and serves requests until the client leaves.
func (h *Host) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Upgrade failed")
		return
	}
	defer conn.Close()
	defer h.track(conn)()

	h.mu.Lock()
	defer h.mu.Unlock()

	h.logger.Info().Str("remote", r.RemoteAddr).Msg("Client connected")
	for {
		var req request
		if err := conn.ReadJSON(&req); err != nil {
			h.logger.Info().Err(err).Msg("Client gone")
			return
		}
		if req.Op == opBye {
			h.logger.Info().Msg("Client said goodbye")
			return
		}

		rep := h.dispatch(req)
		if req.ID == 0 {
			continue
		}
		rep.ID = req.ID
		if err := conn.WriteJSON(rep); err != nil {
			h.logger.Warn().Err(err).Msg("Write reply failed")
			return
		}
	}
}

func (h *Host) dispatch(req request) reply {
	var err error
	rep := reply{}
	switch req.Op {
	case opHello:
		rep.Version = h.backend.Version()
	case opCommand:
		err = h.backend.Command(req.Arg)
	case opMessage:
		err = h.backend.Message(req.Arg)
	case opOpen:
		err = h.backend.OpenDataFile(req.Arg)
	case opCloseFile:
		err = h.backend.CloseDataFile()
	case opReceive:
		rep.Data, err = h.receive(req.Arg)
	case opOffline:
		err = h.backend.SetOfflineMode()
	case opStart:
		err = h.backend.StartRecording()
	case opStop:
		err = h.backend.StopRecording()
	case opStatus:
		rep.Recording, err = h.backend.IsRecording()
	case opSetup:
		err = h.backend.DoTrackerSetup()
	case opDrift:
		rep.Accepted, err = h.backend.DoDriftCorrect(req.X, req.Y)
	default:
		rep.Error = "unknown op " + req.Op
		return rep
	}

	if err != nil {
		h.logger.Warn().Err(err).Str("op", req.Op).Msg("Request failed")
		rep.Error = err.Error()
		return rep
	}
	rep.OK = true
	return rep
}

func (h *Host) receive(name string) ([]byte, error) {
	dir, err := os.MkdirTemp("", "tracker-host-")
	if err != nil {
		return nil, err
	}
	defer os.RemoveAll(dir)

	tmp := filepath.Join(dir, filepath.Base(name))
	if err := h.backend.ReceiveDataFile(name, tmp); err != nil {
		return nil, err
	}
	return os.ReadFile(tmp)
}
