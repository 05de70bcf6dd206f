package enums

import "fmt"

// PayerType names who pays the carrier for delivery.
type PayerType string

const (
	PayerSender    PayerType = "Sender"
	PayerRecipient PayerType = "Recipient"
)

func (p PayerType) IsValid() bool {
	return p == PayerSender || p == PayerRecipient
}

func ParsePayerType(value string) (PayerType, error) {
	if value == "" {
		return PayerRecipient, nil
	}
	p := PayerType(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payer type %q", value)
	}
	return p, nil
}

// PaymentMethod is how the delivery charge is settled with the carrier.
type PaymentMethod string

const (
	PaymentCash    PaymentMethod = "Cash"
	PaymentNonCash PaymentMethod = "NonCash"
)

func (p PaymentMethod) IsValid() bool {
	return p == PaymentCash || p == PaymentNonCash
}

func ParsePaymentMethod(value string) (PaymentMethod, error) {
	if value == "" {
		return PaymentCash, nil
	}
	p := PaymentMethod(value)
	if !p.IsValid() {
		return "", fmt.Errorf("invalid payment method %q", value)
	}
	return p, nil
}
