package domain

import (
	"github.com/shopspring/decimal"
)

// Direction tells whether money left (debit) or entered (credit) the account.
type Direction string

const (
	// DirectionDebit is money leaving the account.
	DirectionDebit Direction = "debit"
	// DirectionCredit is money entering the account.
	DirectionCredit Direction = "credit"
	// DirectionUnknown is used when no direction keyword was found.
	DirectionUnknown Direction = ""
)

// TransactionRecord represents one transaction extracted from a notification email.
// Amount is signed: debits (and unknown directions) are positive, credits negative.
// Date is kept exactly as it appeared in the email (DD-MM-YY or DD-MM-YYYY).
type TransactionRecord struct {
	Amount   decimal.Decimal
	Date     string
	Merchant string
	Type     Direction
}

// Magnitude returns the absolute amount, before the sign convention is applied.
func (r TransactionRecord) Magnitude() decimal.Decimal {
	return r.Amount.Abs()
}
