package main

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"

	"smppd/smpp"
	"smppd/sms"
	"smppd/sqlog"
)

// fakeStore keeps what would go to the sqlog database.
type fakeStore struct {
	mu       sync.Mutex
	messages []sqlog.Message
	receipts map[string]string
	sessions []sqlog.SessionEvent
}

func (f *fakeStore) InsertMessage(_ context.Context, m sqlog.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, m)
	return nil
}

func (f *fakeStore) SetReceipt(_ context.Context, id, stat string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.receipts == nil {
		f.receipts = make(map[string]string)
	}
	f.receipts[id] = stat
	return nil
}

func (f *fakeStore) Counts(context.Context) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	counts := make(map[string]int)
	for _, m := range f.messages {
		counts[m.SystemID]++
	}
	return counts, nil
}

func (f *fakeStore) InsertSession(_ context.Context, e sqlog.SessionEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, e)
	return nil
}

func (f *fakeStore) messageList() []sqlog.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sqlog.Message(nil), f.messages...)
}

func (f *fakeStore) receipt(id string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipts[id]
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func testLogger() *logrus.Entry {
	logger, _ := test.NewNullLogger()
	return logrus.NewEntry(logger)
}

func hasEntry(hook *test.Hook, level logrus.Level, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Level == level && e.Message == msg {
			return true
		}
	}
	return false
}

func startGateway(t *testing.T, config *Config) (*smpp.Server, *Gateway, *fakeStore, *test.Hook) {
	t.Helper()
	srv := smpp.NewServer("127.0.0.1:0", nil)
	srv.Logger = testLogger()
	srv.Config.RequestTimeout = time.Second
	logger, hook := test.NewNullLogger()
	gw := NewGateway(config, srv, logrus.NewEntry(logger))
	store := new(fakeStore)
	gw.Store = store
	srv.SetProcessor(gw, false)
	if err := srv.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		gw.Close()
		srv.Stop()
	})
	return srv, gw, store, hook
}

func dialBound(t *testing.T, srv *smpp.Server, id smpp.CommandID, systemID, password string) *smpp.Transceiver {
	t.Helper()
	trx, err := smpp.Dial(srv.Addr().String(), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { trx.Close() })
	if _, err := trx.Bind(id, systemID, password); err != nil {
		t.Fatal(err)
	}
	return trx
}

func readLoop(trx *smpp.Transceiver) <-chan *smpp.Packet {
	ch := make(chan *smpp.Packet, 16)
	go func() {
		defer close(ch)
		for {
			p, err := trx.Read()
			if err != nil {
				return
			}
			ch <- p
		}
	}()
	return ch
}

func next(t *testing.T, ch <-chan *smpp.Packet) *smpp.Packet {
	t.Helper()
	select {
	case p, ok := <-ch:
		if !ok {
			t.Fatal("connection closed")
		}
		return p
	case <-time.After(3 * time.Second):
		t.Fatal("timeout")
	}
	return nil
}

// sendRecorder is a ResponseSender outside of any session.
type sendRecorder struct{ resp []smpp.Response }

func (r *sendRecorder) Send(resp smpp.Response) { r.resp = append(r.resp, resp) }

func TestGatewayAuthorize(t *testing.T) {
	config := DefaultConfig()
	config.Accounts = map[string]string{"client": "secret"}
	gw := NewGateway(config, nil, testLogger())
	tests := []struct {
		systemID, password string
		status             smpp.CommandStatus
	}{
		{"client", "secret", smpp.ESME_ROK},
		{"client", "wrong", smpp.ESME_RINVPASWD},
		{"stranger", "secret", smpp.ESME_RINVSYSID},
	}
	for _, tt := range tests {
		rs := new(sendRecorder)
		gw.Process(smpp.NewBind(smpp.BIND_TRANSMITTER, tt.systemID, tt.password), rs)
		if len(rs.resp) != 1 || rs.resp[0].Status != tt.status {
			t.Errorf("%s/%s: %v, want %v", tt.systemID, tt.password, rs.resp, tt.status)
		}
	}

	open := NewGateway(DefaultConfig(), nil, testLogger())
	rs := new(sendRecorder)
	open.Process(smpp.NewBind(smpp.BIND_RECEIVER, "anyone", ""), rs)
	if rs.resp[0].Status != smpp.ESME_ROK {
		t.Errorf("bind without accounts: %v", rs.resp[0].Status)
	}
}

func TestGatewayBindOverTCP(t *testing.T) {
	config := DefaultConfig()
	config.Accounts = map[string]string{"client": "secret"}
	srv, _, _, _ := startGateway(t, config)
	trx, err := smpp.Dial(srv.Addr().String(), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer trx.Close()
	if _, err := trx.Bind(smpp.BIND_TRANSCEIVER, "client", "wrong"); !errors.Is(err, smpp.ESME_RINVPASWD) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := trx.Bind(smpp.BIND_TRANSCEIVER, "client", "secret"); err != nil {
		t.Errorf("right password: %v", err)
	}
}

func TestGatewaySubmit(t *testing.T) {
	config := DefaultConfig()
	config.Receipts.Enabled = false
	srv, gw, store, _ := startGateway(t, config)
	trx := dialBound(t, srv, smpp.BIND_TRANSMITTER, "client", "")
	packets := readLoop(trx)

	seq, err := trx.SubmitSm("100", "", []byte("nowhere"), 0)
	if err != nil {
		t.Fatal(err)
	}
	if p := next(t, packets); p.Sequence != seq || p.Status != smpp.ESME_RINVDSTADR {
		t.Errorf("empty destination answered with %v", p)
	}

	seq, _ = trx.SubmitSm("100", "200", sms.Encode(sms.CodingDefault, "hello €"), smpp.RegisteredDeliveryReceipt)
	p := next(t, packets)
	if p.Sequence != seq || p.Status != smpp.ESME_ROK || len(p.MessageID()) != 36 {
		t.Fatalf("submit_sm_resp %v %q", p, p.MessageID())
	}
	waitFor(t, "message log", func() bool { return len(store.messageList()) == 1 })
	msg := store.messageList()[0]
	if msg.ID != p.MessageID() || msg.SystemID != "client" || msg.From != "100" || msg.To != "200" || msg.Text != "hello €" {
		t.Errorf("logged %+v", msg)
	}
	if n := len(gw.PendingReceipts()); n != 0 {
		t.Errorf("%d receipts with receipts disabled", n)
	}
}

func TestGatewayConcatenated(t *testing.T) {
	config := DefaultConfig()
	config.Receipts.Enabled = false
	srv, _, store, _ := startGateway(t, config)
	trx := dialBound(t, srv, smpp.BIND_TRANSMITTER, "client", "")
	packets := readLoop(trx)

	for i, text := range []string{"Hello, ", "world"} {
		data := append([]byte{0x05, 0x00, 0x03, 0x11, 0x02, byte(i + 1)}, text...)
		p := smpp.NewSubmitSm("100", "200", data)
		p.ShortMessage().EsmClass = smpp.EsmClassUDHI
		if _, err := trx.Write(p); err != nil {
			t.Fatal(err)
		}
		if resp := next(t, packets); resp.Status != smpp.ESME_ROK {
			t.Fatalf("part %d: %v", i+1, resp)
		}
	}
	waitFor(t, "message log", func() bool { return len(store.messageList()) == 1 })
	if msg := store.messageList()[0]; msg.Text != "Hello, world" || msg.Parts != 2 {
		t.Errorf("logged %+v", msg)
	}

	p := smpp.NewSubmitSm("100", "200", []byte{0x09, 0x00})
	p.ShortMessage().EsmClass = smpp.EsmClassUDHI
	trx.Write(p)
	if resp := next(t, packets); resp.Status != smpp.ESME_RINVESMCLASS {
		t.Errorf("broken header answered with %v", resp)
	}
}

func TestGatewayReceipt(t *testing.T) {
	config := DefaultConfig()
	config.Receipts.Delay = 10 * time.Millisecond
	srv, gw, store, _ := startGateway(t, config)
	trx := dialBound(t, srv, smpp.BIND_TRANSCEIVER, "client", "")
	packets := readLoop(trx)

	seq, _ := trx.SubmitSm("100", "200", []byte("ping"), smpp.RegisteredDeliveryReceipt)
	resp := next(t, packets)
	if resp.Sequence != seq {
		t.Fatalf("got %v", resp)
	}
	id := resp.MessageID()

	p := next(t, packets)
	if p.CommandID != smpp.DELIVER_SM {
		t.Fatalf("got %v, want deliver_sm", p)
	}
	sm := p.ShortMessage()
	if sm.EsmClass != smpp.EsmClassDeliveryReceipt || sm.Source.Addr != "200" || sm.Dest.Addr != "100" {
		t.Errorf("receipt envelope %+v", sm)
	}
	receipt, err := sms.ParseReceipt(string(sm.Message))
	if err != nil {
		t.Fatal(err)
	}
	if receipt.ID != id || receipt.Stat != sms.StatDelivered || receipt.Text != "ping" {
		t.Errorf("receipt %+v", receipt)
	}
	if tlv, ok := p.Options.Get(smpp.TagReceiptedMessageID); !ok || tlv.Text() != id {
		t.Errorf("receipted_message_id %v", tlv)
	}
	if tlv, ok := p.Options.Get(smpp.TagMessageState); !ok {
		t.Error("no message_state")
	} else if state, _ := tlv.Uint8(); state != 2 {
		t.Errorf("message_state %d", state)
	}
	if err := trx.DeliverSmResp(p.Sequence, smpp.ESME_ROK); err != nil {
		t.Fatal(err)
	}
	waitFor(t, "receipt confirmed", func() bool { return store.receipt(id) == sms.StatDelivered })
	if n := len(gw.PendingReceipts()); n != 0 {
		t.Errorf("%d receipts still pending", n)
	}
}

func TestGatewayReceiptWaitsForReceiver(t *testing.T) {
	config := DefaultConfig()
	config.Receipts.Delay = 10 * time.Millisecond
	config.Receipts.Keep = 10 * time.Second
	srv, gw, _, _ := startGateway(t, config)
	tx := dialBound(t, srv, smpp.BIND_TRANSMITTER, "client", "")
	txPackets := readLoop(tx)
	tx.SubmitSm("100", "200", []byte("later"), smpp.RegisteredDeliveryReceipt)
	id := next(t, txPackets).MessageID()

	waitFor(t, "a failed attempt", func() bool {
		list := gw.PendingReceipts()
		return len(list) == 1 && list[0].Attempts > 0
	})
	if list := gw.PendingReceipts(); list[0].MessageID != id || list[0].SystemID != "client" {
		t.Errorf("pending %+v", list[0])
	}

	rx := dialBound(t, srv, smpp.BIND_RECEIVER, "client", "")
	rxPackets := readLoop(rx)
	p := next(t, rxPackets)
	if tlv, _ := p.Options.Get(smpp.TagReceiptedMessageID); p.CommandID != smpp.DELIVER_SM || tlv.Text() != id {
		t.Fatalf("receiver got %v", p)
	}
	rx.DeliverSmResp(p.Sequence, smpp.ESME_ROK)
	waitFor(t, "receipt delivered", func() bool { return len(gw.PendingReceipts()) == 0 })
}

func TestGatewayReceiptDropped(t *testing.T) {
	config := DefaultConfig()
	config.Receipts.Delay = 10 * time.Millisecond
	config.Receipts.Keep = 0
	srv, gw, _, hook := startGateway(t, config)
	tx := dialBound(t, srv, smpp.BIND_TRANSMITTER, "client", "")
	packets := readLoop(tx)
	tx.SubmitSm("100", "200", []byte("lost"), smpp.RegisteredDeliveryReceipt)
	next(t, packets)
	waitFor(t, "receipt dropped", func() bool { return hasEntry(hook, logrus.WarnLevel, "Receipt dropped") })
	if n := len(gw.PendingReceipts()); n != 0 {
		t.Errorf("%d receipts pending", n)
	}
}

func TestRejectProcessor(t *testing.T) {
	tests := []struct {
		req    *smpp.Packet
		status smpp.CommandStatus
	}{
		{smpp.NewBind(smpp.BIND_TRANSCEIVER, "client", ""), smpp.ESME_RBINDFAIL},
		{smpp.NewSubmitSm("1", "2", nil), smpp.ESME_RSYSERR},
		{smpp.NewEnquireLink(), smpp.ESME_ROK},
		{smpp.NewUnbind(), smpp.ESME_ROK},
	}
	for _, tt := range tests {
		rs := new(sendRecorder)
		rejectProcessor.Process(tt.req, rs)
		if len(rs.resp) != 1 || rs.resp[0].Status != tt.status {
			t.Errorf("%v: %v", tt.req.CommandID, rs.resp)
		}
	}
}
