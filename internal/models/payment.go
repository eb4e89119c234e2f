// internal/models/payment.go
package models

// LineItem is one chargeable item on a payment.
type LineItem struct {
	Code     string `json:"code"`
	Quantity int    `json:"quantity"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// ChargeRef is the payment system's handle for a created charge.
type ChargeRef struct {
	ID    string `json:"id"`
	OrgID string `json:"orgId"`
}
