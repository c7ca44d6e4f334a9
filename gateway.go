package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"

	"smppd/smpp"
	"smppd/sms"
	"smppd/sqlog"
)

// sessionSource lists live sessions; *smpp.Server satisfies it.
type sessionSource interface {
	Sessions() []*smpp.Session
}

// messageStore is the part of the sqlog database the gateway writes to.
type messageStore interface {
	InsertMessage(context.Context, sqlog.Message) error
	SetReceipt(ctx context.Context, id, stat string) error
}

const (
	storeTimeout    = 5 * time.Second
	minReceiptRetry = 100 * time.Millisecond
)

// Gateway is the packet processor of the service: it authorizes binds,
// accepts submitted messages and delivers their receipts back to the client.
type Gateway struct {
	Accounts map[string]string // empty accepts every bind
	Receipts ReceiptsConfig
	Sessions sessionSource // where receipts are delivered
	Store    messageStore  // optional message log
	Logger   *logrus.Entry

	tracker   Receipts
	assembler sms.Assembler
	closed    *atomic.Bool
}

// NewGateway returns a gateway configured from config.
func NewGateway(config *Config, sessions sessionSource, logger *logrus.Entry) *Gateway {
	return &Gateway{
		Accounts:  config.Accounts,
		Receipts:  config.Receipts,
		Sessions:  sessions,
		Logger:    logger,
		assembler: sms.Assembler{MaxAge: time.Hour},
		closed:    atomic.NewBool(false),
	}
}

func (g *Gateway) logger() *logrus.Entry {
	if g.Logger == nil {
		return logrus.NewEntry(logrus.StandardLogger())
	}
	return g.Logger
}

// Process answers one request.
func (g *Gateway) Process(req *smpp.Packet, rs smpp.ResponseSender) {
	switch {
	case req.IsBind():
		rs.Send(smpp.Response{Status: g.authorize(req.Bind())})
	case req.CommandID == smpp.SUBMIT_SM:
		g.submit(req, rs)
	default:
		rs.Send(smpp.OK)
	}
}

func (g *Gateway) authorize(bind *smpp.Bind) smpp.CommandStatus {
	if len(g.Accounts) == 0 {
		return smpp.ESME_ROK
	}
	if bind == nil {
		return smpp.ESME_RINVSYSID
	}
	password, ok := g.Accounts[bind.SystemID]
	switch {
	case !ok:
		g.logger().WithField("system_id", bind.SystemID).Warn("Unknown system id")
		return smpp.ESME_RINVSYSID
	case password != bind.Password:
		g.logger().WithField("system_id", bind.SystemID).Warn("Invalid password")
		return smpp.ESME_RINVPASWD
	}
	return smpp.ESME_ROK
}

func (g *Gateway) submit(req *smpp.Packet, rs smpp.ResponseSender) {
	sm := req.ShortMessage()
	if sm == nil || sm.Dest.Addr == "" {
		rs.Send(smpp.Response{Status: smpp.ESME_RINVDSTADR})
		return
	}
	var systemID, sessionID string
	if session := smpp.SessionOf(rs); session != nil {
		systemID, sessionID = session.SystemID(), session.ID()
	}
	data := sm.Message
	if len(data) == 0 {
		if payload, ok := req.Options.Get(smpp.TagMessagePayload); ok {
			data = payload.Value
		}
	}
	body, full, parts, complete := data, data, 1, true
	if sm.EsmClass&smpp.EsmClassUDHI != 0 {
		part, err := sms.SplitUDH(data)
		if err != nil {
			rs.Send(smpp.Response{Status: smpp.ESME_RINVESMCLASS})
			return
		}
		body, parts = part.Body, int(part.Total)
		full, complete = g.assembler.Add(systemID+"/"+sm.Source.Addr, part)
	}

	id := uuid.NewString()
	rs.Send(smpp.Response{Status: smpp.ESME_ROK, MessageID: id})

	now := time.Now()
	log := g.logger().WithFields(logrus.Fields{
		"id":        id,
		"system_id": systemID,
		"from":      sm.Source.Addr,
		"to":        sm.Dest.Addr,
	})
	if complete {
		msg := sms.Message{
			ID:       id,
			SystemID: systemID,
			From:     sm.Source.Addr,
			To:       sm.Dest.Addr,
			Text:     sms.Decode(sm.DataCoding, full),
			Coding:   sm.DataCoding,
			Parts:    parts,
		}
		log.WithField("text", msg.Text).Debug("Message text")
		log.WithField("parts", parts).Info("Message accepted")
		g.store(log, sessionID, msg, now)
	}

	if !g.Receipts.Enabled || sm.RegisteredDelivery&smpp.RegisteredDeliveryReceipt == 0 || systemID == "" {
		return
	}
	stat := g.Receipts.Stat
	if stat == "" {
		stat = sms.StatDelivered
	}
	g.schedule(id, &receiptItem{
		SystemID: systemID,
		From:     sm.Source.Addr,
		To:       sm.Dest.Addr,
		Receipt: sms.Receipt{
			ID:     id,
			Sub:    1,
			Dlvrd:  1,
			Submit: now,
			Stat:   stat,
			Text:   sms.Decode(sm.DataCoding, body),
		},
		Submitted: now,
	})
}

func (g *Gateway) store(log *logrus.Entry, sessionID string, msg sms.Message, received time.Time) {
	if g.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()
	err := g.Store.InsertMessage(ctx, sqlog.Message{
		ID:       msg.ID,
		Session:  sessionID,
		SystemID: msg.SystemID,
		From:     msg.From,
		To:       msg.To,
		Coding:   msg.Coding,
		Parts:    msg.Parts,
		Text:     msg.Text,
		Received: received,
	})
	if err != nil {
		log.WithError(err).Error("Message log error")
	}
}

func (g *Gateway) schedule(id string, item *receiptItem) {
	g.tracker.Add(id, item)
	time.AfterFunc(g.Receipts.Delay, func() { g.deliver(id) })
}

func (g *Gateway) retry(id string) {
	delay := g.Receipts.Delay
	if delay < minReceiptRetry {
		delay = minReceiptRetry
	}
	time.AfterFunc(delay, func() { g.deliver(id) })
}

// receiver finds a bound session of systemID able to take deliver_sm.
func (g *Gateway) receiver(systemID string) *smpp.Session {
	if g.Sessions == nil {
		return nil
	}
	for _, s := range g.Sessions.Sessions() {
		if s.State() == smpp.StateBound && s.BindType().CanReceive() && s.SystemID() == systemID {
			return s
		}
	}
	return nil
}

// deliver sends the receipt for message id. Failed attempts are retried
// until receipts.keep runs out.
func (g *Gateway) deliver(id string) {
	if g.closed.Load() {
		return
	}
	item, ok := g.tracker.Get(id)
	if !ok {
		return
	}
	attempt := g.tracker.Attempt(id)
	log := g.logger().WithFields(logrus.Fields{
		"id":        id,
		"system_id": item.SystemID,
		"attempt":   attempt,
	})
	err := g.send(id, item)
	if err == nil {
		g.tracker.Remove(id)
		log.Info("Receipt delivered")
		if g.Store != nil {
			ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
			defer cancel()
			if err := g.Store.SetReceipt(ctx, id, item.Receipt.Stat); err != nil {
				log.WithError(err).Error("Message log error")
			}
		}
		return
	}
	if time.Since(item.Submitted) >= g.Receipts.Keep {
		g.tracker.Remove(id)
		log.WithError(err).Warn("Receipt dropped")
		return
	}
	log.WithError(err).Debug("Receipt not delivered, retry")
	g.retry(id)
}

var errNoReceiver = errors.New("no bound receiver")

func (g *Gateway) send(id string, item *receiptItem) error {
	session := g.receiver(item.SystemID)
	if session == nil {
		return errNoReceiver
	}
	receipt := item.Receipt
	receipt.Done = time.Now()
	p := smpp.NewDeliverSm(item.To, item.From, []byte(sms.FormatReceipt(receipt)))
	p.ShortMessage().EsmClass = smpp.EsmClassDeliveryReceipt
	p.Options.Add(smpp.StringTLV(smpp.TagReceiptedMessageID, id))
	p.Options.Add(smpp.Uint8TLV(smpp.TagMessageState, sms.MessageState(receipt.Stat)))
	resp, err := session.SendRequest(context.Background(), p)
	if err != nil {
		return err
	}
	if !resp.Status.Ok() {
		return resp.Status
	}
	return nil
}

// PendingReceipts lists receipts not delivered yet.
func (g *Gateway) PendingReceipts() []ReceiptInfo { return g.tracker.List() }

// Close stops receipt delivery.
func (g *Gateway) Close() {
	g.closed.Store(true)
}

// rejectProcessor refuses binds and messages while keeping live sessions
// answered, to drain the service.
var rejectProcessor = smpp.ProcessorFunc(func(req *smpp.Packet, rs smpp.ResponseSender) {
	switch {
	case req.IsBind():
		rs.Send(smpp.Response{Status: smpp.ESME_RBINDFAIL})
	case req.CommandID == smpp.SUBMIT_SM:
		rs.Send(smpp.Response{Status: smpp.ESME_RSYSERR})
	default:
		rs.Send(smpp.OK)
	}
})
