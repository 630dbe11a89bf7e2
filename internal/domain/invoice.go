package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// InvoiceStatus is the lifecycle status reported by the backend.
type InvoiceStatus string

const (
	StatusPending   InvoiceStatus = "pending"
	StatusPaid      InvoiceStatus = "paid"
	StatusExpired   InvoiceStatus = "expired"
	StatusCancelled InvoiceStatus = "cancelled"
)

// Invoice is the client-side projection of a backend invoice. Each view owns
// its own copy; there is no shared cross-view cache.
type Invoice struct {
	ID         int64           `json:"id"`
	Number     string          `json:"number"`
	PublicCode string          `json:"publicCode"`
	Amount     decimal.Decimal `json:"amount"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	Status     InvoiceStatus   `json:"status"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"` // nil = never expires
	CreatedAt  time.Time       `json:"createdAt"`

	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`

	CoinNetworkID int64  `json:"coinNetworkId"`
	CoinSymbol    string `json:"coinSymbol,omitempty"`
	NetworkSymbol string `json:"networkSymbol,omitempty"`
	NetworkName   string `json:"networkName,omitempty"`
	ExplorerURL   string `json:"explorerUrl,omitempty"`
}

// QRPayload is the ephemeral payload fetched with the first public invoice
// load. Value is the literal string to encode: the payment address only.
type QRPayload struct {
	Address string          `json:"address"`
	Amount  decimal.Decimal `json:"amount"`
	Symbol  string          `json:"symbol"`
	Network string          `json:"network"`
}

// Value returns the string a QR renderer should encode.
func (q QRPayload) Value() string {
	return q.Address
}

// StatusRefresh is the lightweight subset returned by the public status
// endpoint. Everything else on the projection is left untouched by a merge.
type StatusRefresh struct {
	Status     InvoiceStatus   `json:"status"`
	PaidAmount decimal.Decimal `json:"paidAmount"`
	ExpiresAt  *time.Time      `json:"expiresAt,omitempty"`
}

// IsAmountPaid reports whether the accumulated paid amount satisfies the
// invoice amount, compared with exact decimal arithmetic. Overpayment counts
// as paid.
func (inv *Invoice) IsAmountPaid() bool {
	if inv.Amount.IsZero() {
		return false
	}
	return inv.PaidAmount.Cmp(inv.Amount) >= 0
}

// EffectiveStatus computes the status to display. Precedence, highest first:
//
//  1. paid — server-asserted, or paidAmount >= amount
//  2. expired — now past expiresAt (client clock)
//  3. the raw server status
//
// Paid must win every race with the local clock: a payment clearing in the
// last second before expiry still renders as paid. The function is pure and
// commutative with respect to poll/push write order, which makes the merge of
// two independent writers safe.
func EffectiveStatus(inv *Invoice, now time.Time) InvoiceStatus {
	if inv.Status == StatusPaid || inv.IsAmountPaid() {
		return StatusPaid
	}
	if inv.Status == StatusCancelled {
		return StatusCancelled
	}
	if inv.ExpiresAt != nil && now.After(*inv.ExpiresAt) {
		return StatusExpired
	}
	return inv.Status
}

// MergeRefresh folds a lightweight status refresh into the projection.
// Only the fields the refresh carries are written; the address, QR data and
// everything loaded by the initial detailed fetch survive. The merge is
// monotonic: a recorded paid status and the accumulated paid amount never
// regress, so applying a stale poll result after a fresher push (or the
// other way round) yields the same projection.
func MergeRefresh(inv *Invoice, r StatusRefresh) {
	inv.Status = mergeStatusValue(inv.Status, r.Status)
	if r.PaidAmount.Cmp(inv.PaidAmount) > 0 {
		inv.PaidAmount = r.PaidAmount
	}
	if r.ExpiresAt != nil {
		inv.ExpiresAt = r.ExpiresAt
	}
}

// mergeStatusValue applies the terminal override rule: once paid, always
// paid. Empty incoming values keep the current status.
func mergeStatusValue(current, incoming InvoiceStatus) InvoiceStatus {
	if current == StatusPaid {
		return StatusPaid
	}
	if incoming == "" {
		return current
	}
	return incoming
}

// Remaining returns the time left until expiry, clamped at zero.
// A nil expiry means the invoice never expires.
func Remaining(now time.Time, expiresAt *time.Time) time.Duration {
	if expiresAt == nil {
		return 0
	}
	d := expiresAt.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}

// FormatRemaining renders a countdown as HH:MM:SS, or MM:SS under an hour.
func FormatRemaining(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", m, s)
}
