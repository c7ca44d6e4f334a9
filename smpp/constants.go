package smpp

import "fmt"

// InterfaceVersion is the SMPP version announced in bind responses (3.4).
const InterfaceVersion = 0x34

const (
	HeaderLength     = 16         // command_length + command_id + command_status + sequence_number
	MaxSequence      = 0x7FFFFFFF // sequence numbers run 0x00000001..0x7FFFFFFF
	DefaultMaxLength = 64 * 1024  // default upper bound for command_length
	respBit          = 0x80000000
)

// CommandID identifies the type of a PDU.
type CommandID uint32

const (
	GENERIC_NACK          CommandID = 0x80000000
	BIND_RECEIVER         CommandID = 0x00000001
	BIND_RECEIVER_RESP    CommandID = 0x80000001
	BIND_TRANSMITTER      CommandID = 0x00000002
	BIND_TRANSMITTER_RESP CommandID = 0x80000002
	QUERY_SM              CommandID = 0x00000003
	QUERY_SM_RESP         CommandID = 0x80000003
	SUBMIT_SM             CommandID = 0x00000004
	SUBMIT_SM_RESP        CommandID = 0x80000004
	DELIVER_SM            CommandID = 0x00000005
	DELIVER_SM_RESP       CommandID = 0x80000005
	UNBIND                CommandID = 0x00000006
	UNBIND_RESP           CommandID = 0x80000006
	REPLACE_SM            CommandID = 0x00000007
	REPLACE_SM_RESP       CommandID = 0x80000007
	CANCEL_SM             CommandID = 0x00000008
	CANCEL_SM_RESP        CommandID = 0x80000008
	BIND_TRANSCEIVER      CommandID = 0x00000009
	BIND_TRANSCEIVER_RESP CommandID = 0x80000009
	OUTBIND               CommandID = 0x0000000B
	ENQUIRE_LINK          CommandID = 0x00000015
	ENQUIRE_LINK_RESP     CommandID = 0x80000015
	SUBMIT_MULTI          CommandID = 0x00000021
	SUBMIT_MULTI_RESP     CommandID = 0x80000021
	ALERT_NOTIFICATION    CommandID = 0x00000102
	DATA_SM               CommandID = 0x00000103
	DATA_SM_RESP          CommandID = 0x80000103
)

var commandNames = map[CommandID]string{
	GENERIC_NACK:          "generic_nack",
	BIND_RECEIVER:         "bind_receiver",
	BIND_RECEIVER_RESP:    "bind_receiver_resp",
	BIND_TRANSMITTER:      "bind_transmitter",
	BIND_TRANSMITTER_RESP: "bind_transmitter_resp",
	QUERY_SM:              "query_sm",
	QUERY_SM_RESP:         "query_sm_resp",
	SUBMIT_SM:             "submit_sm",
	SUBMIT_SM_RESP:        "submit_sm_resp",
	DELIVER_SM:            "deliver_sm",
	DELIVER_SM_RESP:       "deliver_sm_resp",
	UNBIND:                "unbind",
	UNBIND_RESP:           "unbind_resp",
	REPLACE_SM:            "replace_sm",
	REPLACE_SM_RESP:       "replace_sm_resp",
	CANCEL_SM:             "cancel_sm",
	CANCEL_SM_RESP:        "cancel_sm_resp",
	BIND_TRANSCEIVER:      "bind_transceiver",
	BIND_TRANSCEIVER_RESP: "bind_transceiver_resp",
	OUTBIND:               "outbind",
	ENQUIRE_LINK:          "enquire_link",
	ENQUIRE_LINK_RESP:     "enquire_link_resp",
	SUBMIT_MULTI:          "submit_multi",
	SUBMIT_MULTI_RESP:     "submit_multi_resp",
	ALERT_NOTIFICATION:    "alert_notification",
	DATA_SM:               "data_sm",
	DATA_SM_RESP:          "data_sm_resp",
}

func (id CommandID) String() string {
	if name, ok := commandNames[id]; ok {
		return name
	}
	return fmt.Sprintf("0x%08X", uint32(id))
}

// Known reports whether id belongs to the SMPP 3.4 command catalog.
func (id CommandID) Known() bool {
	_, ok := commandNames[id]
	return ok
}

// IsResponse reports whether the high bit marks id as a response.
func (id CommandID) IsResponse() bool { return uint32(id)&respBit != 0 }

// IsBind reports whether id is one of the three bind requests.
func (id CommandID) IsBind() bool {
	return id == BIND_RECEIVER || id == BIND_TRANSMITTER || id == BIND_TRANSCEIVER
}

// Response returns the response command id for a request id.
func (id CommandID) Response() CommandID {
	if id.IsResponse() {
		return id
	}
	resp := CommandID(uint32(id) | respBit)
	if !resp.Known() {
		return GENERIC_NACK
	}
	return resp
}

// BindType is the role a client bound with.
type BindType int

const (
	BindNone BindType = iota
	BindTransmitter
	BindReceiver
	BindTransceiver
)

func (b BindType) String() string {
	switch b {
	case BindTransmitter:
		return "transmitter"
	case BindReceiver:
		return "receiver"
	case BindTransceiver:
		return "transceiver"
	default:
		return "none"
	}
}

// CanReceive reports whether the MC may send deliver_sm on a session bound as b.
func (b BindType) CanReceive() bool { return b == BindReceiver || b == BindTransceiver }

// bindTypeOf maps a bind command to the role it requests.
func bindTypeOf(id CommandID) BindType {
	switch id {
	case BIND_TRANSMITTER:
		return BindTransmitter
	case BIND_RECEIVER:
		return BindReceiver
	case BIND_TRANSCEIVER:
		return BindTransceiver
	}
	return BindNone
}

// Optional parameter tags used by the engine and the gateway.
const (
	TagReceiptedMessageID uint16 = 0x001E
	TagSarMsgRefNum       uint16 = 0x020C
	TagSarTotalSegments   uint16 = 0x020E
	TagSarSegmentSeqnum   uint16 = 0x020F
	TagSCInterfaceVersion uint16 = 0x0210
	TagNetworkErrorCode   uint16 = 0x0423
	TagMessagePayload     uint16 = 0x0424
	TagMessageState       uint16 = 0x0427
)

// esm_class and registered_delivery bits.
const (
	EsmClassDeliveryReceipt   = 0x04
	EsmClassUDHI              = 0x40
	RegisteredDeliveryReceipt = 0x01
)

// message_state values carried in delivery receipts.
const (
	MessageStateEnroute       = 0x01
	MessageStateDelivered     = 0x02
	MessageStateExpired       = 0x03
	MessageStateDeleted       = 0x04
	MessageStateUndeliverable = 0x05
	MessageStateAccepted      = 0x06
	MessageStateUnknown       = 0x07
	MessageStateRejected      = 0x08
)

// Field length limits (including the terminating NUL) from the SMPP 3.4 PDU definitions.
const (
	maxSystemID     = 16
	maxPassword     = 9
	maxSystemType   = 13
	maxServiceType  = 6
	maxAddress      = 21
	maxAddressRange = 41
	maxTime         = 17
	maxMessageID    = 65
)
