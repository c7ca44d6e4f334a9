package main

import (
	"testing"
	"time"

	"smppd/sms"
)

func TestReceipts(t *testing.T) {
	var receipts Receipts
	now := time.Now()
	receipts.Add("b", &receiptItem{SystemID: "client", Submitted: now, Receipt: sms.Receipt{Stat: sms.StatDelivered}})
	receipts.Add("a", &receiptItem{SystemID: "client", Submitted: now})
	receipts.Add("c", &receiptItem{SystemID: "other", Submitted: now.Add(-time.Minute)})
	if receipts.Len() != 3 {
		t.Fatalf("len %d", receipts.Len())
	}
	list := receipts.List()
	if list[0].MessageID != "c" || list[1].MessageID != "a" || list[2].MessageID != "b" {
		t.Errorf("order %v", list)
	}
	if list[2].Stat != sms.StatDelivered {
		t.Errorf("stat %q", list[2].Stat)
	}
	if n := receipts.Attempt("a"); n != 1 {
		t.Errorf("attempt %d", n)
	}
	if n := receipts.Attempt("a"); n != 2 {
		t.Errorf("attempt %d", n)
	}
	receipts.Remove("a")
	if _, ok := receipts.Get("a"); ok {
		t.Error("removed receipt still tracked")
	}
	if n := receipts.Attempt("a"); n != 0 {
		t.Errorf("attempt on removed receipt %d", n)
	}
}
