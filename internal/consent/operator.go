// Unix domain socket side channel for out-of-band consent decisions.
//
// Protocol: newline-delimited JSON over a Unix domain socket.
// Default path: /run/cognition/operator.sock.
// Permissions: 0600.
//
// Commands (JSON request → JSON response):
//
//	{"cmd":"signal","memory_id":"m1","value":true}
//	  → Resolves a pending manual/voice consent wait for m1, or pre-arms
//	    the next wait if none is pending yet.
//	  → Response: {"ok":true,"memory_id":"m1"}
//
//	{"cmd":"status","memory_id":"m1"}
//	  → Reports whether m1 currently has a pending wait.
//	  → Response: {"ok":true,"memory_id":"m1","pending":true,"since":"..."}
//
//	{"cmd":"list"}
//	  → Lists all memory_ids with a pending wait.
//	  → Response: {"ok":true,"pending_list":[{"memory_id":"m1","since":"..."}]}
//
// Security: the socket is created with 0600 permissions; each connection is
// handled in its own goroutine, bounded by a fixed concurrency semaphore;
// max request size and read/write deadlines guard against abuse.
package consent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

const (
	maxConcurrentConns = 4
	maxRequestBytes    = 4096
	connTimeout        = 10 * time.Second
)

// OperatorRequest is the JSON structure for operator commands.
type OperatorRequest struct {
	Cmd      string `json:"cmd"`
	MemoryID string `json:"memory_id,omitempty"`
	Value    bool   `json:"value,omitempty"`
}

// PendingInfo describes one memory_id's pending wait for the list command.
type PendingInfo struct {
	MemoryID string    `json:"memory_id"`
	Since    time.Time `json:"since"`
}

// OperatorResponse is the JSON structure for operator command responses.
type OperatorResponse struct {
	OK       bool          `json:"ok"`
	Error    string        `json:"error,omitempty"`
	MemoryID string        `json:"memory_id,omitempty"`
	Pending  bool          `json:"pending,omitempty"`
	Since    *time.Time    `json:"since,omitempty"`
	List     []PendingInfo `json:"pending_list,omitempty"`
}

// OperatorServer is the provide_live_signal Unix domain socket side
// channel.
type OperatorServer struct {
	socketPath string
	authority  *Authority
	log        *zap.Logger
	sem        chan struct{}
}

// NewOperatorServer builds an OperatorServer bound to socketPath, resolving
// signals against authority.
func NewOperatorServer(socketPath string, authority *Authority, log *zap.Logger) *OperatorServer {
	return &OperatorServer{
		socketPath: socketPath,
		authority:  authority,
		log:        log,
		sem:        make(chan struct{}, maxConcurrentConns),
	}
}

// ListenAndServe binds the operator socket and serves until ctx is
// cancelled. Removes any stale socket file before binding.
func (s *OperatorServer) ListenAndServe(ctx context.Context) error {
	if err := os.Remove(s.socketPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("consent: remove stale socket %q: %w", s.socketPath, err)
	}
	if err := os.MkdirAll(filepath.Dir(s.socketPath), 0o700); err != nil {
		return fmt.Errorf("consent: mkdir %q: %w", filepath.Dir(s.socketPath), err)
	}

	lis, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("consent: listen %q: %w", s.socketPath, err)
	}
	defer lis.Close()

	if err := os.Chmod(s.socketPath, 0o600); err != nil {
		return fmt.Errorf("consent: chmod %q: %w", s.socketPath, err)
	}

	if s.log != nil {
		s.log.Info("operator socket listening", zap.String("path", s.socketPath))
	}

	go func() {
		<-ctx.Done()
		lis.Close()
	}()

	for {
		conn, err := lis.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				if s.log != nil {
					s.log.Error("operator: accept error", zap.Error(err))
				}
				continue
			}
		}

		select {
		case s.sem <- struct{}{}:
		default:
			if s.log != nil {
				s.log.Warn("operator: max connections reached, rejecting")
			}
			_ = conn.Close()
			continue
		}

		go func(c net.Conn) {
			defer func() { <-s.sem }()
			defer c.Close()
			s.handleConn(c)
		}(conn)
	}
}

func (s *OperatorServer) handleConn(conn net.Conn) {
	_ = conn.SetDeadline(time.Now().Add(connTimeout))

	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if err != nil && err != io.EOF {
		if s.log != nil {
			s.log.Warn("operator: read error", zap.Error(err))
		}
		return
	}

	var req OperatorRequest
	if err := json.Unmarshal(buf[:n], &req); err != nil {
		s.writeResponse(conn, OperatorResponse{OK: false, Error: "invalid JSON: " + err.Error()})
		return
	}

	s.writeResponse(conn, s.dispatch(req))
}

func (s *OperatorServer) dispatch(req OperatorRequest) OperatorResponse {
	switch req.Cmd {
	case "signal":
		return s.cmdSignal(req)
	case "status":
		return s.cmdStatus(req)
	case "list":
		return s.cmdList()
	default:
		return OperatorResponse{OK: false, Error: fmt.Sprintf("unknown command %q", req.Cmd)}
	}
}

func (s *OperatorServer) cmdSignal(req OperatorRequest) OperatorResponse {
	if req.MemoryID == "" {
		return OperatorResponse{OK: false, Error: "memory_id required for signal"}
	}
	s.authority.ProvideLiveSignal(req.MemoryID, req.Value)
	if s.log != nil {
		s.log.Info("operator: signal provided", zap.String("memory_id", req.MemoryID), zap.Bool("value", req.Value))
	}
	return OperatorResponse{OK: true, MemoryID: req.MemoryID}
}

func (s *OperatorServer) cmdStatus(req OperatorRequest) OperatorResponse {
	if req.MemoryID == "" {
		return OperatorResponse{OK: false, Error: "memory_id required for status"}
	}
	pending := s.authority.PendingSignals()
	since, ok := pending[req.MemoryID]
	resp := OperatorResponse{OK: true, MemoryID: req.MemoryID, Pending: ok}
	if ok {
		resp.Since = &since
	}
	return resp
}

func (s *OperatorServer) cmdList() OperatorResponse {
	pending := s.authority.PendingSignals()
	list := make([]PendingInfo, 0, len(pending))
	for id, since := range pending {
		list = append(list, PendingInfo{MemoryID: id, Since: since})
	}
	return OperatorResponse{OK: true, List: list}
}

func (s *OperatorServer) writeResponse(conn net.Conn, resp OperatorResponse) {
	data, _ := json.Marshal(resp)
	data = append(data, '\n')
	_, _ = conn.Write(data)
}
