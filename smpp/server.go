package smpp

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"
)

// SessionListener is told about every session the server creates and
// destroys. Calls come from connection goroutines and must not block.
type SessionListener interface {
	Created(*Session)
	Destroyed(*Session)
}

// BindListener is an optional extension of SessionListener told about every
// successful bind.
type BindListener interface {
	Bound(*Session)
}

// Server accepts SMPP client connections and runs a Session for each.
type Server struct {
	TLSConfig *tls.Config     // when set the server listens with TLS
	Config    Config          // settings for new sessions
	Logger    *logrus.Entry   // defaults to the standard logger
	Listener  SessionListener // optional

	addr      string
	mu        sync.RWMutex
	processor Processor
	listener  net.Listener
	registry  *Registry
	running   *atomic.Bool
	wg        sync.WaitGroup
}

// NewServer returns a server for addr. A nil processor answers every request
// with ESME_ROK.
func NewServer(addr string, processor Processor) *Server {
	if processor == nil {
		processor = DefaultProcessor{}
	}
	RegisterMetrics()
	return &Server{
		Config:    DefaultConfig(),
		addr:      addr,
		processor: processor,
		registry:  NewRegistry(),
		running:   atomic.NewBool(false),
	}
}

func (s *Server) logger() *logrus.Entry {
	if s.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return s.Logger
}

// Listen opens the listening socket, with TLS when TLSConfig is set.
func (s *Server) Listen() (net.Listener, error) {
	if s.TLSConfig != nil {
		return tls.Listen("tcp", s.addr, s.TLSConfig)
	}
	return net.Listen("tcp", s.addr)
}

// Serve accepts connections on ln until Stop. It always returns a non-nil
// error; after Stop or Shutdown it is ErrServerClosed.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)
	logger := s.logger().WithField("listen", ln.Addr().String())
	logger.Info("SMPP server started")

	var delay time.Duration
	for {
		conn, err := ln.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				logger.Info("SMPP server stopped")
				return ErrServerClosed
			}
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				if delay == 0 {
					delay = 5 * time.Millisecond
				} else if delay *= 2; delay > time.Second {
					delay = time.Second
				}
				logger.WithError(err).Warnf("Accept error, retrying in %v", delay)
				time.Sleep(delay)
				continue
			}
			logger.WithError(err).Error("Accept error")
			return err
		}
		delay = 0
		s.accept(conn)
	}
}

func (s *Server) accept(conn net.Conn) {
	session := NewSession(conn, s.Processor(), s.Config, s.logger())
	s.wg.Add(1)
	if err := s.registry.Add(session); err != nil {
		session.base.WithError(err).Warn("Connection refused")
		session.Close()
		s.wg.Done()
		return
	}
	if l := s.Listener; l != nil {
		l.Created(session)
		if bl, ok := l.(BindListener); ok {
			session.onBind(bl.Bound)
		}
		session.onClose(l.Destroyed)
	}
	go func() {
		defer s.wg.Done()
		session.Serve()
	}()
}

// ListenAndServe listens on the configured address and serves.
func (s *Server) ListenAndServe() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Start listens and serves in the background.
func (s *Server) Start() error {
	ln, err := s.Listen()
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()
	s.running.Store(true)
	go s.Serve(ln)
	return nil
}

// Addr returns the listening address, nil before Listen.
func (s *Server) Addr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) closeListener() error {
	s.running.Store(false)
	s.mu.RLock()
	ln := s.listener
	s.mu.RUnlock()
	if ln == nil {
		return nil
	}
	if err := ln.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

// Stop closes the listener and every session, then waits for the session
// goroutines to finish. A stopped server cannot be started again.
func (s *Server) Stop() error {
	err := s.closeListener()
	s.registry.CloseAll()
	s.wg.Wait()
	return err
}

// Shutdown stops accepting connections and unbinds every bound session,
// waiting for the clients to answer until ctx is done. Whatever is left is
// closed by Stop.
func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.closeListener(); err != nil {
		return err
	}
	g, gctx := errgroup.WithContext(ctx)
	for _, session := range s.registry.Sessions() {
		session := session
		if session.State() != StateBound {
			continue
		}
		g.Go(func() error {
			if err := session.Unbind(gctx); err != nil {
				session.log().WithError(err).Warn("Unbind on shutdown")
			}
			return nil
		})
	}
	_ = g.Wait()
	return s.Stop()
}

// Sessions lists the live sessions, oldest first.
func (s *Server) Sessions() []*Session { return s.registry.Sessions() }

// Session returns a live session by id.
func (s *Server) Session(id string) (*Session, bool) { return s.registry.Get(id) }

// Processor returns the processor given to new sessions.
func (s *Server) Processor() Processor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.processor
}

// SetProcessor changes the processor for new sessions, and for the live ones
// too when applyExisting is set.
func (s *Server) SetProcessor(p Processor, applyExisting bool) {
	if p == nil {
		p = DefaultProcessor{}
	}
	s.mu.Lock()
	s.processor = p
	s.mu.Unlock()
	if !applyExisting {
		return
	}
	for _, session := range s.registry.Sessions() {
		session.SetProcessor(p)
	}
}
