package sms

import "time"

// Message is a submitted short message after decoding.
// It includes only those fields the gateway logs.
type Message struct {
	ID       string // message identifier assigned by the gateway
	SystemID string // client that submitted it
	From     string // from which number
	To       string // to which number
	Text     string // message text (already decoded)
	Coding   uint8  // data_coding of the original
	Parts    int    // number of SMS parts
}

// Receipt is the content of a delivery receipt.
type Receipt struct {
	ID     string    // message identifier
	Sub    int       // number of SMS parts
	Dlvrd  int       // number of delivered parts
	Submit time.Time // message send date
	Done   time.Time // date when the message reached its final state
	Stat   string    // Delivery status message_state in string form
	Err    int       // Extended delivery status network_error_code
	Text   string    // first characters of the original message
}
