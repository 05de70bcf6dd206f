package novaposhta

import (
	"context"
	"strings"

	pkgerrors "github.com/kittykibble/kibble-backend/pkg/errors"
)

const (
	CounterpartySender    = "Sender"
	CounterpartyRecipient = "Recipient"
)

// Counterparty is a registered sender or recipient.
type Counterparty struct {
	Ref          string `json:"Ref"`
	Description  string `json:"Description"`
	FirstName    string `json:"FirstName"`
	LastName     string `json:"LastName"`
	MiddleName   string `json:"MiddleName"`
	City         string `json:"City"`
	Counterparty string `json:"Counterparty"`
}

// ContactPerson belongs to a counterparty.
type ContactPerson struct {
	Ref         string `json:"Ref"`
	Description string `json:"Description"`
	FirstName   string `json:"FirstName"`
	LastName    string `json:"LastName"`
	MiddleName  string `json:"MiddleName"`
	Phones      string `json:"Phones"`
}

// NewPrivatePerson is the Counterparty.save payload for a private recipient.
type NewPrivatePerson struct {
	CityRef    string
	FirstName  string
	LastName   string
	MiddleName string
	Phone      string
	Email      string
}

// GetCounterparties lists the account's counterparties of one property (Sender|Recipient).
func (c *Client) GetCounterparties(ctx context.Context, property string) ([]Counterparty, error) {
	if property != CounterpartySender && property != CounterpartyRecipient {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counterparty property must be Sender or Recipient")
	}
	var out []Counterparty
	props := map[string]any{"CounterpartyProperty": property, "Page": "1"}
	if err := c.call(ctx, "Counterparty", "getCounterparties", props, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetContactPersons lists contact persons of a counterparty.
func (c *Client) GetContactPersons(ctx context.Context, counterpartyRef string) ([]ContactPerson, error) {
	counterpartyRef = strings.TrimSpace(counterpartyRef)
	if counterpartyRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "counterparty ref is required")
	}
	var out []ContactPerson
	props := map[string]any{"Ref": counterpartyRef, "Page": "1"}
	if err := c.call(ctx, "Counterparty", "getCounterpartyContactPersons", props, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SaveRecipient registers a private-person recipient.
func (c *Client) SaveRecipient(ctx context.Context, p NewPrivatePerson) (*Counterparty, error) {
	if strings.TrimSpace(p.CityRef) == "" || strings.TrimSpace(p.FirstName) == "" || strings.TrimSpace(p.LastName) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "recipient city, first and last name are required")
	}
	props := map[string]any{
		"CounterpartyType":     "PrivatePerson",
		"CounterpartyProperty": CounterpartyRecipient,
		"CityRef":              p.CityRef,
		"FirstName":            p.FirstName,
		"LastName":             p.LastName,
		"MiddleName":           p.MiddleName,
		"Phone":                p.Phone,
		"Email":                p.Email,
	}
	var out []Counterparty
	if err := c.call(ctx, "Counterparty", "save", props, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 || out[0].Ref == "" {
		return nil, pkgerrors.New(pkgerrors.CodeCarrier, "carrier returned no recipient")
	}
	return &out[0], nil
}
