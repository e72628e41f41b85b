package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// Notification is the HTTP notification Midtrans posts when a transaction changes state.
type Notification struct {
	TransactionTime   string `json:"transaction_time"`
	TransactionStatus string `json:"transaction_status"`
	TransactionID     string `json:"transaction_id"`
	StatusCode        string `json:"status_code"`
	SignatureKey      string `json:"signature_key"`
	OrderID           string `json:"order_id"`
	GrossAmount       string `json:"gross_amount"`
	PaymentType       string `json:"payment_type"`
	FraudStatus       string `json:"fraud_status"`
}

// Status maps the notification onto the provider-agnostic Status.
func (n Notification) Status() Status {
	return MapTransactionStatus(n.TransactionStatus, n.FraudStatus)
}

// VerifyNotification checks SHA512(order_id + status_code + gross_amount + server_key).
func VerifyNotification(n Notification, serverKey string) bool {
	want := strings.ToLower(strings.TrimSpace(n.SignatureKey))
	if want == "" || serverKey == "" {
		return false
	}
	got := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}

// Signature computes the hex signature Midtrans attaches to notifications.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}
