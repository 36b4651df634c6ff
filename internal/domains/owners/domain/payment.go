package domain

import "errors"

// CardNumberLength is the only accepted length of a stored card number.
const CardNumberLength = 16

var ErrInvalidCardNumber = errors.New("card number must be exactly 16 digits")

// PaymentMethod is the card an owner pays with. It is stored verbatim; nothing here charges it.
type PaymentMethod struct {
	CardNumber string
}

// NewPaymentMethod accepts exactly 16 ASCII digits.
func NewPaymentMethod(digits string) (*PaymentMethod, error) {
	if len(digits) != CardNumberLength {
		return nil, ErrInvalidCardNumber
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return nil, ErrInvalidCardNumber
		}
	}
	return &PaymentMethod{CardNumber: digits}, nil
}

// Last4 returns the final four digits.
func (p *PaymentMethod) Last4() string {
	if p == nil || len(p.CardNumber) < 4 {
		return ""
	}
	return p.CardNumber[len(p.CardNumber)-4:]
}
