package ticketrelay

import (
	"context"
	"net/http"
	"sync"
	"time"

	engineigo "github.com/taogames/engine.igo"
	"github.com/taogames/engine.igo/message"
	"go.uber.org/zap"
)

const (
	MainNamespace = "/"

	DefaultAuthTimeout = 5 * time.Second
)

type ServerOption func(o *Server)

func WithPingInterval(intv time.Duration) ServerOption {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, engineigo.WithPingInterval(intv))
	}
}

func WithPingTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, engineigo.WithPingTimeout(timeout))
	}
}

func WithMaxPayload(payload int64) ServerOption {
	return func(s *Server) {
		s.engineOpts = append(s.engineOpts, engineigo.WithMaxPayload(payload))
	}
}

func WithLogger(logger *zap.SugaredLogger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithHub shares a hub with other components, such as the REST bridge.
func WithHub(hub *Hub) ServerOption {
	return func(s *Server) {
		s.hub = hub
	}
}

func WithAuthTimeout(timeout time.Duration) ServerOption {
	return func(s *Server) {
		if timeout > 0 {
			s.authTimeout = timeout
		}
	}
}

type Server struct {
	engine     *engineigo.Server
	engineOpts []engineigo.ServerOption

	verifier    Verifier
	authTimeout time.Duration
	hub         *Hub
	router      *Router

	logger *zap.SugaredLogger

	ctx       context.Context
	cancel    context.CancelFunc
	closed    chan struct{}
	closeOnce sync.Once
}

// NewServer builds a socket.io server whose connections must pass verifier
// before they are registered.
func NewServer(verifier Verifier, opts ...ServerOption) *Server {
	srv := &Server{
		verifier:    verifier,
		authTimeout: DefaultAuthTimeout,
		closed:      make(chan struct{}),
	}

	for _, o := range opts {
		o(srv)
	}

	if srv.logger == nil {
		logger, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		srv.logger = logger.Sugar()
	}
	if srv.hub == nil {
		srv.hub = NewHub(WithHubLogger(srv.logger))
	}
	srv.router = NewRouter(srv.hub, srv.logger)
	srv.ctx, srv.cancel = context.WithCancel(context.Background())

	srv.engineOpts = append(srv.engineOpts, engineigo.WithLogger(srv.logger))
	srv.engine = engineigo.NewServer(srv.engineOpts...)

	return srv
}

func (s *Server) Hub() *Hub {
	return s.hub
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

// Accept serves engine.io sessions until Close.
func (s *Server) Accept() {
	for {
		select {
		case <-s.closed:
			return
		case e := <-s.engine.Accept():
			s.logger.Info("Engine.IO connection received")
			go s.Serve(engineSession{e})
		}
	}
}

// Serve runs one session to completion: handshake, then the read loop.
func (s *Server) Serve(session EngineSession) {
	conn := newConnection(s, session)
	if !conn.handshake() {
		conn.Close()
		return
	}
	conn.Start()
}

type errMsg struct {
	Message string `json:"message"`
}

var ErrInvalidNamespace errMsg = errMsg{
	Message: "Invalid namespace",
}

type connReply struct {
	Sid string `json:"sid"`
}

// Close stops accepting sessions and drops every live connection.
func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.cancel()
		s.hub.Close()
	})
}

type engineSession struct {
	s *engineigo.Session
}

func (e engineSession) ID() string {
	return e.s.ID()
}

func (e engineSession) ReadMessage() (message.MessageType, []byte, error) {
	return e.s.ReadMessage()
}

func (e engineSession) WriteMessage(msg *message.Message) error {
	return e.s.WriteMessage(msg)
}

func (e engineSession) Close() {
	e.s.Close()
}
