package tracker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

// Wire operations understood by a tracker host.
const (
	opHello     = "hello"
	opCommand   = "command"
	opMessage   = "message"
	opOpen      = "open"
	opCloseFile = "close_file"
	opReceive   = "receive"
	opOffline   = "offline"
	opStart     = "start"
	opStop      = "stop"
	opStatus    = "status"
	opSetup     = "setup"
	opDrift     = "drift"
	opBye       = "bye"
)

// request is sent to the host. Messages carry no id and get no reply.
type request struct {
	ID  uint64 `json:"id,omitempty"`
	Op  string `json:"op"`
	Arg string `json:"arg,omitempty"`
	X   int    `json:"x,omitempty"`
	Y   int    `json:"y,omitempty"`
}

type reply struct {
	ID        uint64 `json:"id"`
	OK        bool   `json:"ok"`
	Error     string `json:"error,omitempty"`
	Recording bool   `json:"recording,omitempty"`
	Accepted  bool   `json:"accepted,omitempty"`
	Version   int    `json:"version,omitempty"`
	Data      []byte `json:"data,omitempty"`
}

// operatorTimeout bounds requests that wait for the operator on the host.
const operatorTimeout = 24 * time.Hour

// WSLink talks to a tracker host bridge over a websocket.
type WSLink struct {
	conn            *websocket.Conn
	timeout         time.Duration
	transferTimeout time.Duration
	nextID          uint64
	version         int
	broken          bool
}

// DialWS connects to the host at address, either "host:port" or a ws:// URL.
func DialWS(ctx context.Context, address string, timeout time.Duration) (*WSLink, error) {
	url := address
	if !strings.HasPrefix(url, "ws://") && !strings.HasPrefix(url, "wss://") {
		url = "ws://" + address + "/link"
	}

	dialer := websocket.Dialer{HandshakeTimeout: timeout}
	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrConnection, url, err)
	}

	l := &WSLink{
		conn:            conn,
		timeout:         timeout,
		transferTimeout: 30 * time.Second,
	}
	rep, err := l.roundTrip(request{Op: opHello}, timeout)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}
	l.version = rep.Version
	return l, nil
}

func (l *WSLink) fail(err error) error {
	l.broken = true
	return fmt.Errorf("%w: %v", ErrLinkLost, err)
}

func (l *WSLink) roundTrip(req request, timeout time.Duration) (reply, error) {
	if l.broken {
		return reply{}, ErrLinkLost
	}
	l.nextID++
	req.ID = l.nextID

	l.conn.SetWriteDeadline(time.Now().Add(timeout))
	if err := l.conn.WriteJSON(req); err != nil {
		return reply{}, l.fail(err)
	}

	// A read timeout leaves the connection unusable, so it counts as a lost
	// link as well.
	l.conn.SetReadDeadline(time.Now().Add(timeout))
	for {
		var rep reply
		if err := l.conn.ReadJSON(&rep); err != nil {
			return reply{}, l.fail(err)
		}
		if rep.ID != req.ID {
			continue
		}
		if !rep.OK {
			return rep, fmt.Errorf("%w: %s: %s", ErrDevice, req.Op, rep.Error)
		}
		return rep, nil
	}
}

func (l *WSLink) call(op, arg string) error {
	_, err := l.roundTrip(request{Op: op, Arg: arg}, l.timeout)
	return err
}

func (l *WSLink) Version() int { return l.version }

func (l *WSLink) Command(cmd string) error { return l.call(opCommand, cmd) }

func (l *WSLink) Message(msg string) error {
	if l.broken {
		return ErrLinkLost
	}
	l.conn.SetWriteDeadline(time.Now().Add(l.timeout))
	if err := l.conn.WriteJSON(request{Op: opMessage, Arg: msg}); err != nil {
		return l.fail(err)
	}
	return nil
}

func (l *WSLink) OpenDataFile(name string) error {
	err := l.call(opOpen, name)
	if errors.Is(err, ErrDevice) {
		return fmt.Errorf("%w: %v", ErrLogFile, err)
	}
	return err
}

func (l *WSLink) CloseDataFile() error { return l.call(opCloseFile, "") }

func (l *WSLink) ReceiveDataFile(src, dst string) error {
	rep, err := l.roundTrip(request{Op: opReceive, Arg: src}, l.transferTimeout)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.WriteFile(dst, rep.Data, 0o644)
}

func (l *WSLink) SetOfflineMode() error { return l.call(opOffline, "") }

func (l *WSLink) StartRecording() error { return l.call(opStart, "") }

func (l *WSLink) StopRecording() error { return l.call(opStop, "") }

func (l *WSLink) IsRecording() (bool, error) {
	rep, err := l.roundTrip(request{Op: opStatus}, l.timeout)
	if err != nil {
		return false, err
	}
	return rep.Recording, nil
}

func (l *WSLink) Connected() bool { return !l.broken }

func (l *WSLink) DoTrackerSetup() error {
	_, err := l.roundTrip(request{Op: opSetup}, operatorTimeout)
	return err
}

func (l *WSLink) DoDriftCorrect(x, y int) (bool, error) {
	rep, err := l.roundTrip(request{Op: opDrift, X: x, Y: y}, operatorTimeout)
	if err != nil {
		return false, err
	}
	return rep.Accepted, nil
}

// Close says goodbye to the host when the link is still up and releases the
// connection. It is safe to call more than once.
func (l *WSLink) Close() error {
	if l.conn == nil {
		return nil
	}
	if !l.broken {
		l.conn.SetWriteDeadline(time.Now().Add(l.timeout))
		l.conn.WriteJSON(request{Op: opBye})
		l.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	}
	l.broken = true
	err := l.conn.Close()
	l.conn = nil
	return err
}
