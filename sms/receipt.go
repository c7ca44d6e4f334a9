package sms

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Final delivery states as they appear in the stat field of a receipt.
const (
	StatDelivered     = "DELIVRD"
	StatExpired       = "EXPIRED"
	StatDeleted       = "DELETED"
	StatUndeliverable = "UNDELIV"
	StatAccepted      = "ACCEPTD"
	StatUnknown       = "UNKNOWN"
	StatRejected      = "REJECTD"
	StatEnroute       = "ENROUTE"
)

// message_state value for each stat string
var statStates = map[string]uint8{
	StatEnroute:       1,
	StatDelivered:     2,
	StatExpired:       3,
	StatDeleted:       4,
	StatUndeliverable: 5,
	StatAccepted:      6,
	StatUnknown:       7,
	StatRejected:      8,
}

// MessageState returns the message_state TLV value for a stat string.
func MessageState(stat string) uint8 {
	if s, ok := statStates[stat]; ok {
		return s
	}
	return statStates[StatUnknown]
}

// reStatus describes the format of a status message
var reStatus = regexp.MustCompile(`^\s*id:(\S+) sub:(\d+) dlvrd:(\d+) submit date:(\d+) done date:(\d+) stat:(\w+) err:(\d+) [Tt]ext:(.*?)\s*$`)

const statusTimeFormat = `0601021504` // format for representing date in the status response

var ErrReceiptFormat = errors.New("sms: not a delivery receipt")

// FormatReceipt renders r as the short_message of a delivery receipt. The text
// is cut to 20 characters.
func FormatReceipt(r Receipt) string {
	text := []rune(r.Text)
	if len(text) > 20 {
		text = text[:20]
	}
	return fmt.Sprintf("id:%s sub:%03d dlvrd:%03d submit date:%s done date:%s stat:%s err:%03d text:%s",
		r.ID, r.Sub, r.Dlvrd,
		r.Submit.Format(statusTimeFormat), r.Done.Format(statusTimeFormat),
		r.Stat, r.Err, string(text))
}

// ParseReceipt reads a receipt produced by FormatReceipt or by another MC.
func ParseReceipt(s string) (Receipt, error) {
	parts := reStatus.FindStringSubmatch(s)
	if parts == nil {
		return Receipt{}, ErrReceiptFormat
	}
	r := Receipt{
		ID:   parts[1],
		Stat: parts[6],
		Text: parts[8],
	}
	var err error
	if r.Sub, err = strconv.Atoi(parts[2]); err != nil {
		return r, err
	}
	if r.Dlvrd, err = strconv.Atoi(parts[3]); err != nil {
		return r, err
	}
	if r.Submit, err = time.Parse(statusTimeFormat, parts[4]); err != nil {
		return r, err
	}
	if r.Done, err = time.Parse(statusTimeFormat, parts[5]); err != nil {
		return r, err
	}
	if r.Err, err = strconv.Atoi(parts[7]); err != nil {
		return r, err
	}
	return r, nil
}
