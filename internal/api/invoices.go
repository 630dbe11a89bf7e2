package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"paydash/internal/domain"

	"github.com/shopspring/decimal"
)

// ListOptions are the paging parameters shared by listing accessors.
// Zero values fall back to the documented defaults.
type ListOptions struct {
	Page  int    // default 1
	Limit int    // default 10
	Sort  string // default "createdAt"
	Order string // default "desc"
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	page := o.Page
	if page <= 0 {
		page = 1
	}
	limit := o.Limit
	if limit <= 0 {
		limit = 10
	}
	sort := o.Sort
	if sort == "" {
		sort = "createdAt"
	}
	order := o.Order
	if order == "" {
		order = "desc"
	}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	q.Set("sort", sort)
	q.Set("order", order)
	return q
}

// invoiceWire tolerates the id/invoiceId naming split across endpoints.
type invoiceWire struct {
	ID            int64                `json:"id"`
	InvoiceID     int64                `json:"invoiceId"`
	Number        string               `json:"number"`
	PublicCode    string               `json:"publicCode"`
	Amount        decimal.Decimal      `json:"amount"`
	PaidAmount    decimal.Decimal      `json:"paidAmount"`
	Status        domain.InvoiceStatus `json:"status"`
	ExpiresAt     *time.Time           `json:"expiresAt"`
	CreatedAt     time.Time            `json:"createdAt"`
	Description   string               `json:"description"`
	Address       string               `json:"address"`
	CoinNetworkID int64                `json:"coinNetworkId"`
	CoinSymbol    string               `json:"coinSymbol"`
	NetworkSymbol string               `json:"networkSymbol"`
	NetworkName   string               `json:"networkName"`
	ExplorerURL   string               `json:"explorerUrl"`
}

func (w invoiceWire) toDomain() domain.Invoice {
	id := w.ID
	if id == 0 {
		id = w.InvoiceID
	}
	return domain.Invoice{
		ID:            id,
		Number:        w.Number,
		PublicCode:    w.PublicCode,
		Amount:        w.Amount,
		PaidAmount:    w.PaidAmount,
		Status:        w.Status,
		ExpiresAt:     w.ExpiresAt,
		CreatedAt:     w.CreatedAt,
		Description:   w.Description,
		Address:       w.Address,
		CoinNetworkID: w.CoinNetworkID,
		CoinSymbol:    w.CoinSymbol,
		NetworkSymbol: w.NetworkSymbol,
		NetworkName:   w.NetworkName,
		ExplorerURL:   w.ExplorerURL,
	}
}

// ListInvoices fetches the authenticated user's invoices.
// Defaults: page 1, limit 10, sorted by creation time descending.
func (c *Client) ListInvoices(ctx context.Context, opts ListOptions) ([]domain.Invoice, error) {
	raw, err := c.request(ctx, http.MethodGet, "/invoices", opts.query(), nil)
	if err != nil {
		return nil, err
	}

	var wires []invoiceWire
	if err := json.Unmarshal(unwrapList(raw), &wires); err != nil {
		return []domain.Invoice{}, nil
	}
	invoices := make([]domain.Invoice, 0, len(wires))
	for _, w := range wires {
		invoices = append(invoices, w.toDomain())
	}
	return invoices, nil
}

// GetInvoice fetches one invoice by numeric id.
func (c *Client) GetInvoice(ctx context.Context, id int64) (*domain.Invoice, error) {
	raw, err := c.request(ctx, http.MethodGet, fmt.Sprintf("/invoices/%d", id), nil, nil)
	if err != nil {
		return nil, err
	}
	var w invoiceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	inv := w.toDomain()
	return &inv, nil
}

// CreateInvoiceRequest is the payload for invoice creation.
type CreateInvoiceRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CoinNetworkID int64           `json:"coinNetworkId"`
	Description   string          `json:"description,omitempty"`
	ExpiresInSec  int             `json:"expiresInSec,omitempty"`
}

// CreateInvoice creates an invoice and returns the backend's record.
func (c *Client) CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*domain.Invoice, error) {
	raw, err := c.request(ctx, http.MethodPost, "/invoices", nil, req)
	if err != nil {
		return nil, err
	}
	var w invoiceWire
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, domain.NewFatalNetworkError("decode", err)
	}
	inv := w.toDomain()
	return &inv, nil
}

// publicQRPayload is the combined first-load response for the public
// payment page: the invoice projection plus the QR payload, one round trip.
type publicQRPayload struct {
	Invoice invoiceWire `json:"invoice"`
	QR      struct {
		Address string          `json:"address"`
		Amount  decimal.Decimal `json:"amount"`
		Symbol  string          `json:"symbol"`
		Network string          `json:"network"`
	} `json:"qr"`
}

// PublicInvoiceQR performs the initial detailed load for a public invoice
// code. This is the only call that yields the payment address and QR value.
func (c *Client) PublicInvoiceQR(ctx context.Context, code string) (*domain.Invoice, *domain.QRPayload, error) {
	raw, err := c.request(ctx, http.MethodGet, "/public/invoices/"+url.PathEscape(code)+"/qr", nil, nil)
	if err != nil {
		return nil, nil, err
	}

	var payload publicQRPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, nil, domain.NewFatalNetworkError("decode", err)
	}

	inv := payload.Invoice.toDomain()
	if inv.Address == "" {
		inv.Address = payload.QR.Address
	}
	qr := domain.QRPayload{
		Address: payload.QR.Address,
		Amount:  payload.QR.Amount,
		Symbol:  payload.QR.Symbol,
		Network: payload.QR.Network,
	}
	return &inv, &qr, nil
}

// publicStatusPayload is the lightweight refresh shape. It never carries the
// address or QR data.
type publicStatusPayload struct {
	Invoice struct {
		Status     domain.InvoiceStatus `json:"status"`
		PaidAmount decimal.Decimal      `json:"paidAmount"`
		ExpiresAt  *time.Time           `json:"expiresAt"`
	} `json:"invoice"`
}

// PublicInvoiceStatus performs a cheap status-only refresh for a public code.
func (c *Client) PublicInvoiceStatus(ctx context.Context, code string) (domain.StatusRefresh, error) {
	raw, err := c.request(ctx, http.MethodGet, "/public/invoices/"+url.PathEscape(code)+"/status", nil, nil)
	if err != nil {
		return domain.StatusRefresh{}, err
	}

	var payload publicStatusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return domain.StatusRefresh{}, domain.NewFatalNetworkError("decode", err)
	}
	return domain.StatusRefresh{
		Status:     payload.Invoice.Status,
		PaidAmount: payload.Invoice.PaidAmount,
		ExpiresAt:  payload.Invoice.ExpiresAt,
	}, nil
}
