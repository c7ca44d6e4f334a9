package main

import (
	"sort"
	"sync"
	"time"

	"smppd/sms"
)

// receiptItem is a delivery receipt waiting for a receiving session.
type receiptItem struct {
	SystemID  string      // client that submitted the message
	From      string      // source of the original message, receipt destination
	To        string      // destination of the original message, receipt source
	Receipt   sms.Receipt // content to deliver
	Attempts  int         // delivery attempts so far
	Submitted time.Time   // when the message was accepted
}

// ReceiptInfo describes a pending receipt for the admin listing.
type ReceiptInfo struct {
	MessageID string    `json:"messageId"`
	SystemID  string    `json:"systemId"`
	Stat      string    `json:"stat"`
	Attempts  int       `json:"attempts"`
	Submitted time.Time `json:"submitted"`
}

// Receipts tracks submitted messages until their receipt is delivered or
// given up on.
type Receipts struct {
	list map[string]*receiptItem // message id
	mu   sync.RWMutex
}

func (r *Receipts) Add(id string, item *receiptItem) {
	r.mu.Lock()
	if r.list == nil {
		r.list = make(map[string]*receiptItem)
	}
	r.list[id] = item
	r.mu.Unlock()
}

func (r *Receipts) Get(id string) (*receiptItem, bool) {
	r.mu.RLock()
	item, ok := r.list[id]
	r.mu.RUnlock()
	return item, ok
}

// Attempt counts one more delivery attempt and returns the total. Zero means
// the receipt is no longer tracked.
func (r *Receipts) Attempt(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.list[id]
	if !ok {
		return 0
	}
	item.Attempts++
	return item.Attempts
}

func (r *Receipts) Remove(id string) {
	r.mu.Lock()
	delete(r.list, id)
	r.mu.Unlock()
}

func (r *Receipts) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.list)
}

// List returns the pending receipts, oldest first.
func (r *Receipts) List() []ReceiptInfo {
	r.mu.RLock()
	list := make([]ReceiptInfo, 0, len(r.list))
	for id, item := range r.list {
		list = append(list, ReceiptInfo{
			MessageID: id,
			SystemID:  item.SystemID,
			Stat:      item.Receipt.Stat,
			Attempts:  item.Attempts,
			Submitted: item.Submitted,
		})
	}
	r.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].Submitted.Equal(list[j].Submitted) {
			return list[i].MessageID < list[j].MessageID
		}
		return list[i].Submitted.Before(list[j].Submitted)
	})
	return list
}
