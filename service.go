package main

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"smppd/smpp"
	"smppd/sqlog"
)

// shutdownTimeout bounds the graceful unbind of clients on stop.
var shutdownTimeout = 10 * time.Second

// Service is one running configuration: the SMPP server with its gateway
// processor and the optional admin, audit and monitoring parts.
type Service struct {
	config  *Config
	logger  *logrus.Entry
	server  *smpp.Server
	gateway *Gateway
	db      *sqlog.DB
	http    *http.Server
}

// NewService prepares a service for config. Nothing listens until Run.
func NewService(config *Config, logger *logrus.Entry) (*Service, error) {
	s := &Service{config: config, logger: logger}
	s.server = smpp.NewServer(config.Server.Address, nil)
	s.server.Config = config.Session
	s.server.Logger = logger.WithField("component", "smpp")
	if config.Server.CertFile != "" {
		cert, err := tls.LoadX509KeyPair(config.Server.CertFile, config.Server.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("tls: %w", err)
		}
		s.server.TLSConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
	}
	s.gateway = NewGateway(config, s.server, logger.WithField("component", "gateway"))
	s.server.SetProcessor(s.gateway, false)

	var ls listeners
	if config.SQLog.DSN != "" {
		db, err := sqlog.Connect(config.SQLog.DSN)
		if err != nil {
			return nil, fmt.Errorf("sqlog: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		err = db.Migrate(ctx)
		cancel()
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("sqlog: %w", err)
		}
		s.db = db
		s.gateway.Store = db
		ls = append(ls, &auditListener{db: db, logger: logger.WithField("component", "sqlog")})
	}
	if config.Zabbix != nil {
		ls = append(ls, newMonitorListener(config.Zabbix.Log, config.Zabbix.Key,
			logger.WithField("component", "zabbix")))
	}
	if len(ls) > 0 {
		s.server.Listener = ls
	}
	if config.Admin.Address != "" {
		adm := newAdmin(s.server, s.gateway, logger.WithField("component", "admin"))
		if s.db != nil {
			adm.counter = s.db
		}
		s.http = &http.Server{
			Addr:              config.Admin.Address,
			Handler:           adm.handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}
	}
	return s, nil
}

// Run serves until ctx is done or a listener fails, then stops gracefully.
func (s *Service) Run(ctx context.Context) error {
	ln, err := s.server.Listen()
	if err != nil {
		if s.db != nil {
			s.db.Close()
		}
		return err
	}
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.server.Serve(ln); !errors.Is(err, smpp.ErrServerClosed) {
			return err
		}
		return nil
	})
	if s.http != nil {
		g.Go(func() error {
			s.logger.WithField("listen", s.http.Addr).Info("Admin server started")
			if err := s.http.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}
	g.Go(func() error {
		<-ctx.Done()
		s.stop()
		return nil
	})
	return g.Wait()
}

func (s *Service) stop() {
	s.gateway.Close()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if s.http != nil {
		if err := s.http.Shutdown(ctx); err != nil {
			s.logger.WithError(err).Warn("Admin server shutdown")
		}
	}
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.WithError(err).Warn("SMPP server shutdown")
	}
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Info("Service stopped")
}
