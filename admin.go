package main

import (
	"context"
	"errors"
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"smppd/smpp"
)

// messageCounter is the part of the sqlog database the admin reads.
type messageCounter interface {
	Counts(context.Context) (map[string]int, error)
}

// admin is the HTTP management surface: session listing and control,
// processor hot swap, pending receipts and metrics.
type admin struct {
	server     *smpp.Server
	gateway    *Gateway
	processors map[string]smpp.Processor
	counter    messageCounter // optional
	logger     *logrus.Entry

	mu      sync.Mutex
	current string // name of the installed processor
}

func newAdmin(server *smpp.Server, gateway *Gateway, logger *logrus.Entry) *admin {
	return &admin{
		server:  server,
		gateway: gateway,
		processors: map[string]smpp.Processor{
			"gateway": gateway,
			"default": smpp.DefaultProcessor{},
			"reject":  rejectProcessor,
		},
		logger:  logger,
		current: "gateway",
	}
}

func (a *admin) handler() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(a.logRequests(), gin.Recovery())

	router.GET("/sessions", a.listSessions)
	router.GET("/sessions/:id", a.getSession)
	router.DELETE("/sessions/:id", a.closeSession)
	router.POST("/sessions/:id/unbind", a.unbindSession)
	router.POST("/sessions/:id/enquire_link", a.enquireLink)
	router.GET("/processor", a.getProcessor)
	router.PUT("/processor/:name", a.setProcessor)
	router.GET("/receipts", a.receipts)
	router.GET("/messages/counts", a.messageCounts)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return router
}

func (a *admin) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log := a.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
			"client":  c.ClientIP(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			log.Warn("Admin request failed")
			return
		}
		log.Debug("Admin request")
	}
}

func (a *admin) listSessions(c *gin.Context) {
	sessions := a.server.Sessions()
	list := make([]smpp.Info, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, s.Info())
	}
	c.JSON(http.StatusOK, list)
}

func (a *admin) session(c *gin.Context) (*smpp.Session, bool) {
	s, ok := a.server.Session(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	}
	return s, ok
}

func (a *admin) getSession(c *gin.Context) {
	if s, ok := a.session(c); ok {
		c.JSON(http.StatusOK, s.Info())
	}
}

func (a *admin) closeSession(c *gin.Context) {
	s, ok := a.session(c)
	if !ok {
		return
	}
	s.Close()
	a.logger.WithField("session", s.ID()).Info("Session closed by admin")
	c.Status(http.StatusNoContent)
}

func (a *admin) unbindSession(c *gin.Context) {
	s, ok := a.session(c)
	if !ok {
		return
	}
	if err := s.Unbind(c.Request.Context()); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

func (a *admin) enquireLink(c *gin.Context) {
	s, ok := a.session(c)
	if !ok {
		return
	}
	start := time.Now()
	if err := s.EnquireLink(c.Request.Context()); err != nil {
		c.JSON(errorStatus(err), gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"rtt": time.Since(start).String()})
}

func (a *admin) getProcessor(c *gin.Context) {
	a.mu.Lock()
	current := a.current
	a.mu.Unlock()
	names := make([]string, 0, len(a.processors))
	for name := range a.processors {
		names = append(names, name)
	}
	sort.Strings(names)
	c.JSON(http.StatusOK, gin.H{"current": current, "available": names})
}

// setProcessor installs a processor for new sessions, and for the live
// ones too with ?apply=all.
func (a *admin) setProcessor(c *gin.Context) {
	name := c.Param("name")
	p, ok := a.processors[name]
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown processor"})
		return
	}
	applyAll := c.Query("apply") == "all"
	a.mu.Lock()
	a.server.SetProcessor(p, applyAll)
	a.current = name
	a.mu.Unlock()
	a.logger.WithFields(logrus.Fields{
		"processor": name,
		"all":       applyAll,
	}).Info("Processor changed")
	c.JSON(http.StatusOK, gin.H{"current": name})
}

func (a *admin) receipts(c *gin.Context) {
	c.JSON(http.StatusOK, a.gateway.PendingReceipts())
}

func (a *admin) messageCounts(c *gin.Context) {
	if a.counter == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "message log disabled"})
		return
	}
	counts, err := a.counter.Counts(c.Request.Context())
	if err != nil {
		a.logger.WithError(err).Error("Message count error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, counts)
}

func errorStatus(err error) int {
	var status smpp.CommandStatus
	switch {
	case errors.Is(err, smpp.ErrNotBound), errors.Is(err, smpp.ErrClosed):
		return http.StatusConflict
	case errors.Is(err, smpp.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &status):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
