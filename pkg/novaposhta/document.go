package novaposhta

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

// DateLayout is the carrier's date format for DateTime fields.
const DateLayout = "02.01.2006"

const (
	CargoTypeCargo     = "Cargo"
	CargoTypeDocuments = "Documents"
)

// PriceRequest asks for the delivery price of a parcel.
type PriceRequest struct {
	CitySender    string          `json:"CitySender"`
	CityRecipient string          `json:"CityRecipient"`
	Weight        decimal.Decimal `json:"Weight"`
	Cost          decimal.Decimal `json:"Cost"`
	ServiceType   string          `json:"ServiceType"`
	CargoType     string          `json:"CargoType,omitempty"`
	SeatsAmount   int             `json:"SeatsAmount,omitempty"`
}

// Price is the carrier's quote.
type Price struct {
	Cost                  decimal.Decimal `json:"Cost"`
	EstimatedDeliveryDate string          `json:"EstimatedDeliveryDate"`
}

// DocumentRequest is the InternetDocument.save payload.
type DocumentRequest struct {
	Sender           string          `json:"Sender"`
	CitySender       string          `json:"CitySender"`
	SenderAddress    string          `json:"SenderAddress"`
	ContactSender    string          `json:"ContactSender"`
	SendersPhone     string          `json:"SendersPhone"`
	Recipient        string          `json:"Recipient"`
	CityRecipient    string          `json:"CityRecipient"`
	RecipientAddress string          `json:"RecipientAddress"`
	ContactRecipient string          `json:"ContactRecipient"`
	RecipientsPhone  string          `json:"RecipientsPhone"`
	PayerType        string          `json:"PayerType"`
	PaymentMethod    string          `json:"PaymentMethod"`
	CargoType        string          `json:"CargoType"`
	Weight           decimal.Decimal `json:"Weight"`
	ServiceType      string          `json:"ServiceType"`
	SeatsAmount      int             `json:"SeatsAmount"`
	Description      string          `json:"Description"`
	Cost             decimal.Decimal `json:"Cost"`
	DateTime         string          `json:"DateTime"`
}

// Document is the created waybill.
type Document struct {
	Ref                   string          `json:"Ref"`
	IntDocNumber          string          `json:"IntDocNumber"`
	CostOnSite            decimal.Decimal `json:"CostOnSite"`
	EstimatedDeliveryDate string          `json:"EstimatedDeliveryDate"`
}

// TrackingStatus is one entry of TrackingDocument.getStatusDocuments.
type TrackingStatus struct {
	Number                string `json:"Number"`
	Status                string `json:"Status"`
	StatusCode            string `json:"StatusCode"`
	WarehouseSender       string `json:"WarehouseSender"`
	WarehouseRecipient    string `json:"WarehouseRecipient"`
	ScheduledDeliveryDate string `json:"ScheduledDeliveryDate"`
	ActualDeliveryDate    string `json:"ActualDeliveryDate"`
}

// GetDocumentPrice quotes a delivery.
func (c *Client) GetDocumentPrice(ctx context.Context, req PriceRequest) (*Price, error) {
	if req.CitySender == "" || req.CityRecipient == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "sender and recipient cities are required")
	}
	var prices []Price
	if err := c.call(ctx, "InternetDocument", "getDocumentPrice", req, &prices); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeCarrier, "carrier returned no price")
	}
	return &prices[0], nil
}

// SaveDocument creates the waybill.
func (c *Client) SaveDocument(ctx context.Context, req DocumentRequest) (*Document, error) {
	if req.DateTime == "" {
		req.DateTime = c.now().Format(DateLayout)
	}
	var docs []Document
	if err := c.call(ctx, "InternetDocument", "save", req, &docs); err != nil {
		return nil, err
	}
	if len(docs) == 0 || docs[0].Ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCarrier, "carrier returned no waybill")
	}
	return &docs[0], nil
}

// DeleteDocument cancels a waybill by ref.
func (c *Client) DeleteDocument(ctx context.Context, ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "waybill ref is required")
	}
	return c.call(ctx, "InternetDocument", "delete", map[string]any{"DocumentRefs": ref}, nil)
}

// TrackDocuments fetches statuses for the given waybill numbers.
func (c *Client) TrackDocuments(ctx context.Context, numbers ...string) ([]TrackingStatus, error) {
	docs := make([]map[string]string, 0, len(numbers))
	for _, n := range numbers {
		if n = strings.TrimSpace(n); n != "" {
			docs = append(docs, map[string]string{"DocumentNumber": n})
		}
	}
	if len(docs) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one waybill number is required")
	}
	var statuses []TrackingStatus
	if err := c.call(ctx, "TrackingDocument", "getStatusDocuments", map[string]any{"Documents": docs}, &statuses); err != nil {
		return nil, err
	}
	return statuses, nil
}
