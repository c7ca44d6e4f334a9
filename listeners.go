package main

import (
	"context"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"smppd/smpp"
	"smppd/sqlog"
)

// listeners passes session events to each listener in turn.
type listeners []smpp.SessionListener

func (l listeners) Created(s *smpp.Session) {
	for _, listener := range l {
		listener.Created(s)
	}
}

func (l listeners) Bound(s *smpp.Session) {
	for _, listener := range l {
		if bl, ok := listener.(smpp.BindListener); ok {
			bl.Bound(s)
		}
	}
}

func (l listeners) Destroyed(s *smpp.Session) {
	for _, listener := range l {
		listener.Destroyed(s)
	}
}

// sessionStore is the part of the sqlog database the audit listener uses.
type sessionStore interface {
	InsertSession(context.Context, sqlog.SessionEvent) error
}

// auditListener records session lifecycle events in the database.
type auditListener struct {
	db     sessionStore
	logger *logrus.Entry
}

func (a *auditListener) Created(s *smpp.Session) { go a.insert(s, sqlog.EventCreated) }

func (a *auditListener) Bound(s *smpp.Session) { go a.insert(s, sqlog.EventBound) }

func (a *auditListener) Destroyed(s *smpp.Session) { go a.insert(s, sqlog.EventDestroyed) }

func (a *auditListener) insert(s *smpp.Session, event string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := a.db.InsertSession(ctx, sqlog.SessionEvent{
		Session:  s.ID(),
		Event:    event,
		Remote:   s.RemoteAddr().String(),
		SystemID: s.SystemID(),
		BindType: s.BindType().String(),
		Time:     time.Now(),
	})
	if err != nil {
		a.logger.WithError(err).WithField("session", s.ID()).Error("Session log error")
	}
}

// gaugeSender pushes a monitoring value; zabbix.Log satisfies it.
type gaugeSender interface {
	Send(ctx context.Context, key, value string) error
}

// monitorListener reports the number of active sessions on every change.
type monitorListener struct {
	sender gaugeSender
	key    string
	active *atomic.Int64
	logger *logrus.Entry
}

func newMonitorListener(sender gaugeSender, key string, logger *logrus.Entry) *monitorListener {
	return &monitorListener{
		sender: sender,
		key:    key,
		active: atomic.NewInt64(0),
		logger: logger,
	}
}

func (m *monitorListener) Created(*smpp.Session) { go m.push(m.active.Inc()) }

func (m *monitorListener) Destroyed(*smpp.Session) { go m.push(m.active.Dec()) }

func (m *monitorListener) push(n int64) {
	err := m.sender.Send(context.Background(), m.key, strconv.FormatInt(n, 10))
	if err != nil {
		m.logger.WithError(err).Warn("Monitoring error")
	}
}
