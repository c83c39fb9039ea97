package conn

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/NPLinker/nplinker/internal/auth"
	"github.com/NPLinker/nplinker/internal/schema"
	"github.com/NPLinker/nplinker/pkg"
	"github.com/gorilla/websocket"
)

type WsRequest struct {
	Action RequestAction `json:"action"`
	ReqId  int           `json:"__np_client_req_id__"` // used in clients
}

var Upgrader = websocket.Upgrader{
	WriteBufferSize: 1024 * 10,
	ReadBufferSize:  1024 * 10,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type LogOptions struct {
	Should_log      bool
	Show_debug_logs bool
}

// Server accepts dashboard connections and gives each one an independent
// session over the shared descriptor set. The descriptors are validated once
// here: a broken join graph keeps the server from starting at all rather
// than failing mid-session.
type Server struct {
	Locker sync.RWMutex
	Tables []*schema.Table
	Guard  *auth.Guard
	// when any session last ran a state-changing action
	LastChange time.Time

	// session id -> session, for the sessions currently connected
	sessions pkg.Map[string, *Session]
}

func (s *Server) GetLocker() *sync.RWMutex { return &s.Locker }

func NewServer(tables []*schema.Table, guard *auth.Guard, log_options LogOptions) (*Server, error) {
	if log_options.Should_log {
		if log_options.Show_debug_logs {
			pkg.SetLogLevel(pkg.LogLevelDebug)
		} else {
			pkg.SetLogLevel(pkg.LogLevelErrOnly)
		}
	} else {
		pkg.SetLogLevel(pkg.LogLevelNone)
	}

	if _, err := schema.NewSchema(tables); err != nil {
		return nil, err
	}
	return &Server{Tables: tables, Guard: guard, sessions: pkg.Map[string, *Session]{}}, nil
}

// SessionCount returns the number of currently connected sessions.
func (s *Server) SessionCount() int {
	count := 0
	pkg.RLockWrap(s, func() { count = len(s.sessions) })
	return count
}

func (s *Server) LastChangedAt() time.Time {
	var last time.Time
	pkg.RLockWrap(s, func() { last = s.LastChange })
	return last
}

// touch records that a state-changing action ran; read-only actions leave
// LastChange alone.
func (s *Server) touch(action RequestAction) {
	if action.IsReadOnly() {
		return
	}
	pkg.LockWrap(s, func() { s.LastChange = time.Now() })
}

func (s *Server) Listen(port int) {
	exit := make(chan os.Signal, 2)
	signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		ReadTimeout:  0,
		WriteTimeout: 0,
	}

	http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if last := s.LastChangedAt(); !last.IsZero() {
			fmt.Fprintf(w, "ok (%d sessions, last change %s)",
				s.SessionCount(), last.Format(time.RFC3339))
			return
		}
		fmt.Fprintf(w, "ok (%d sessions)", s.SessionCount())
	})

	http.HandleFunc("/", s.HandleConnection)

	go func() {
		err := srv.ListenAndServe()
		if err != http.ErrServerClosed {
			pkg.FatalLog(err)
		}
	}()

	pkg.InfoLog("listening on port", port)
	<-exit
	pkg.DebugLog("Shutting down...")
	srv.Shutdown(context.Background())
}

func connSecret(r *http.Request) string {
	if r.URL.Query().Has("secret") {
		return r.URL.Query().Get("secret")
	}
	return r.Header.Get("Authorization")
}

func (s *Server) HandleConnection(w http.ResponseWriter, r *http.Request) {
	if !s.Guard.Validate(connSecret(r)) {
		ConnError(w, r, "connection unauthorized")
		return
	}

	conn, err := Upgrader.Upgrade(w, r, nil)
	if err != nil {
		pkg.ErrorLog(err)
		return
	}
	defer conn.Close()

	session, err := NewSession(s.Tables)
	if err != nil {
		pkg.ErrorLog("starting session", err)
		return
	}

	pkg.LockWrap(s, func() { s.sessions.Set(session.Id, session) })
	pkg.InfoLog("New session established", session.Id)
	defer func() {
		pkg.LockWrap(s, func() { s.sessions.Delete(session.Id) })
		pkg.InfoLog("Session closed", session.Id)
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				pkg.ErrorLog("unexpected close", err)
			} else {
				pkg.DebugLog("connection closed", err)
			}
			return
		}

		var req WsRequest
		if err := json.Unmarshal(message, &req); err != nil {
			pkg.ErrorLog("parsing request", err)
			continue
		}

		res := ActionHandler(session, req.Action, message)
		res.ReqId = req.ReqId

		if err := conn.WriteJSON(res); err != nil {
			pkg.ErrorLog("writing response", err)
			return
		}

		s.touch(req.Action)
	}
}

func ConnError(w http.ResponseWriter, r *http.Request, conn_error string) {
	pkg.InfoLog("connection error:", conn_error)
	headers := http.Header{}
	headers.Set("np-error", conn_error)
	conn, err := Upgrader.Upgrade(w, r, headers)
	if err != nil {
		pkg.ErrorLog(err)
		return
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseUnsupportedData, conn_error))
	conn.Close()
}
