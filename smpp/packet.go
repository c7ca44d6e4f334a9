package smpp

import "fmt"

// Packet is one decoded PDU. Sequence 0 means "not assigned yet".
type Packet struct {
	CommandID CommandID
	Status    CommandStatus
	Sequence  uint32
	Body      Body    // nil for header-only PDUs
	Options   Options // optional parameters, in wire order
}

// Body is the command specific part of a PDU.
type Body interface {
	encode(w *writer) error
	decode(r *reader) error
}

func (p *Packet) IsRequest() bool  { return !p.CommandID.IsResponse() }
func (p *Packet) IsResponse() bool { return p.CommandID.IsResponse() }
func (p *Packet) IsBind() bool     { return p.CommandID.IsBind() }

// Reply builds the header of the response to p: matching response command id
// and the same sequence number.
func (p *Packet) Reply(status CommandStatus) *Packet {
	return &Packet{
		CommandID: p.CommandID.Response(),
		Status:    status,
		Sequence:  p.Sequence,
	}
}

func (p *Packet) String() string {
	return fmt.Sprintf("%s seq=%d status=0x%08X", p.CommandID, p.Sequence, uint32(p.Status))
}

// Bind returns the bind body, or nil when p is not a bind request.
func (p *Packet) Bind() *Bind {
	b, _ := p.Body.(*Bind)
	return b
}

// ShortMessage returns the submit_sm/deliver_sm body, or nil.
func (p *Packet) ShortMessage() *ShortMessage {
	sm, _ := p.Body.(*ShortMessage)
	return sm
}

// MessageID returns the message_id of a submit_sm_resp/deliver_sm_resp.
func (p *Packet) MessageID() string {
	if r, ok := p.Body.(*MessageIDResp); ok {
		return r.MessageID
	}
	return ""
}

// Address is a TON/NPI qualified address.
type Address struct {
	TON  uint8
	NPI  uint8
	Addr string
}

func (a Address) encode(w *writer, max int) error {
	w.u8(a.TON)
	w.u8(a.NPI)
	return w.cstring(a.Addr, max)
}

func (a *Address) decode(r *reader, max int) {
	a.TON = r.u8()
	a.NPI = r.u8()
	a.Addr = r.cstring(max)
}

// Bind is the body shared by bind_receiver, bind_transmitter and bind_transceiver.
type Bind struct {
	SystemID         string
	Password         string
	SystemType       string
	InterfaceVersion uint8
	AddrRange        Address
}

func (b *Bind) encode(w *writer) error {
	if err := w.cstring(b.SystemID, maxSystemID); err != nil {
		return err
	}
	if err := w.cstring(b.Password, maxPassword); err != nil {
		return err
	}
	if err := w.cstring(b.SystemType, maxSystemType); err != nil {
		return err
	}
	w.u8(b.InterfaceVersion)
	return b.AddrRange.encode(w, maxAddressRange)
}

func (b *Bind) decode(r *reader) error {
	b.SystemID = r.cstring(maxSystemID)
	b.Password = r.cstring(maxPassword)
	b.SystemType = r.cstring(maxSystemType)
	b.InterfaceVersion = r.u8()
	b.AddrRange.decode(r, maxAddressRange)
	return r.err
}

// BindResp carries the MC system_id. Error responses may have no body at all.
type BindResp struct {
	SystemID string
}

func (b *BindResp) encode(w *writer) error { return w.cstring(b.SystemID, maxSystemID) }

func (b *BindResp) decode(r *reader) error {
	if r.remaining() == 0 {
		return nil
	}
	b.SystemID = r.cstring(maxSystemID)
	return r.err
}

// ShortMessage is the mandatory body of submit_sm and deliver_sm.
type ShortMessage struct {
	ServiceType          string
	Source               Address
	Dest                 Address
	EsmClass             uint8
	ProtocolID           uint8
	PriorityFlag         uint8
	ScheduleDeliveryTime string
	ValidityPeriod       string
	RegisteredDelivery   uint8
	ReplaceIfPresent     uint8
	DataCoding           uint8
	DefaultMsgID         uint8
	Message              []byte
}

func (m *ShortMessage) encode(w *writer) error {
	if len(m.Message) > 254 {
		return fmt.Errorf("smpp: short_message of %d octets exceeds 254, use message_payload", len(m.Message))
	}
	if err := w.cstring(m.ServiceType, maxServiceType); err != nil {
		return err
	}
	if err := m.Source.encode(w, maxAddress); err != nil {
		return err
	}
	if err := m.Dest.encode(w, maxAddress); err != nil {
		return err
	}
	w.u8(m.EsmClass)
	w.u8(m.ProtocolID)
	w.u8(m.PriorityFlag)
	if err := w.cstring(m.ScheduleDeliveryTime, maxTime); err != nil {
		return err
	}
	if err := w.cstring(m.ValidityPeriod, maxTime); err != nil {
		return err
	}
	w.u8(m.RegisteredDelivery)
	w.u8(m.ReplaceIfPresent)
	w.u8(m.DataCoding)
	w.u8(m.DefaultMsgID)
	w.u8(uint8(len(m.Message)))
	w.raw(m.Message)
	return nil
}

func (m *ShortMessage) decode(r *reader) error {
	m.ServiceType = r.cstring(maxServiceType)
	m.Source.decode(r, maxAddress)
	m.Dest.decode(r, maxAddress)
	m.EsmClass = r.u8()
	m.ProtocolID = r.u8()
	m.PriorityFlag = r.u8()
	m.ScheduleDeliveryTime = r.cstring(maxTime)
	m.ValidityPeriod = r.cstring(maxTime)
	m.RegisteredDelivery = r.u8()
	m.ReplaceIfPresent = r.u8()
	m.DataCoding = r.u8()
	m.DefaultMsgID = r.u8()
	m.Message = r.take(int(r.u8()))
	return r.err
}

// MessageIDResp is the body of submit_sm_resp and deliver_sm_resp.
type MessageIDResp struct {
	MessageID string
}

func (m *MessageIDResp) encode(w *writer) error { return w.cstring(m.MessageID, maxMessageID) }

func (m *MessageIDResp) decode(r *reader) error {
	if r.remaining() == 0 {
		return nil
	}
	m.MessageID = r.cstring(maxMessageID)
	return r.err
}

// Opaque holds the raw body of commands the engine does not interpret.
type Opaque struct {
	Data []byte
}

func (o *Opaque) encode(w *writer) error {
	w.raw(o.Data)
	return nil
}

func (o *Opaque) decode(r *reader) error {
	o.Data = r.rest()
	return nil
}

// newBody returns an empty body for id, or nil for header-only commands.
func newBody(id CommandID) Body {
	switch id {
	case BIND_RECEIVER, BIND_TRANSMITTER, BIND_TRANSCEIVER:
		return &Bind{}
	case BIND_RECEIVER_RESP, BIND_TRANSMITTER_RESP, BIND_TRANSCEIVER_RESP:
		return &BindResp{}
	case SUBMIT_SM, DELIVER_SM:
		return &ShortMessage{}
	case SUBMIT_SM_RESP, DELIVER_SM_RESP:
		return &MessageIDResp{}
	case UNBIND, UNBIND_RESP, ENQUIRE_LINK, ENQUIRE_LINK_RESP, GENERIC_NACK:
		return nil
	}
	return &Opaque{}
}

// NewBind builds a bind request of the given kind.
func NewBind(id CommandID, systemID, password string) *Packet {
	return &Packet{
		CommandID: id,
		Body: &Bind{
			SystemID:         systemID,
			Password:         password,
			InterfaceVersion: InterfaceVersion,
		},
	}
}

// NewSubmitSm builds a submit_sm with default TON/NPI.
func NewSubmitSm(source, dest string, message []byte) *Packet {
	return &Packet{
		CommandID: SUBMIT_SM,
		Body: &ShortMessage{
			Source:  Address{Addr: source},
			Dest:    Address{Addr: dest},
			Message: message,
		},
	}
}

// NewDeliverSm builds a deliver_sm toward a client.
func NewDeliverSm(source, dest string, message []byte) *Packet {
	return &Packet{
		CommandID: DELIVER_SM,
		Body: &ShortMessage{
			Source:  Address{Addr: source},
			Dest:    Address{Addr: dest},
			Message: message,
		},
	}
}

func NewEnquireLink() *Packet { return &Packet{CommandID: ENQUIRE_LINK} }

func NewUnbind() *Packet { return &Packet{CommandID: UNBIND} }

// NewGenericNack answers a PDU that could not be matched to a response type.
func NewGenericNack(sequence uint32, status CommandStatus) *Packet {
	return &Packet{CommandID: GENERIC_NACK, Status: status, Sequence: sequence}
}
