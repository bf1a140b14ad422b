package model

import (
	"fmt"
	"time"

	"golang.org/x/text/currency"
)

// AccountType classifies the customer account a transaction belongs to.
type AccountType string

const (
	AccountPersonal AccountType = "personal"
	AccountBusiness AccountType = "business"
)

// RiskRating is the customer's standing risk rating from onboarding/KYC.
type RiskRating string

const (
	RatingLow    RiskRating = "low"
	RatingMedium RiskRating = "medium"
	RatingHigh   RiskRating = "high"
)

// Transaction is the canonical input record for an investigation.
// It is immutable once an investigation starts.
type Transaction struct {
	Amount             float64     `json:"amount"`
	Currency           string      `json:"currency"`
	Description        string      `json:"description"`
	CustomerName       string      `json:"customer_name"`
	AccountType        AccountType `json:"account_type"`
	CustomerRiskRating RiskRating  `json:"customer_risk_rating"`
	DestinationCountry string      `json:"destination_country"`
	Timestamp          time.Time   `json:"timestamp"`
}

// Validate checks the transaction at the ingestion boundary.
func (t *Transaction) Validate() error {
	if t.Amount <= 0 {
		return fmt.Errorf("transaction: amount must be positive, got %v", t.Amount)
	}
	if t.Currency == "" {
		return fmt.Errorf("transaction: currency is required")
	}
	if _, err := currency.ParseISO(t.Currency); err != nil {
		return fmt.Errorf("transaction: invalid ISO currency code %q: %w", t.Currency, err)
	}
	if t.DestinationCountry == "" {
		return fmt.Errorf("transaction: destination_country is required")
	}
	switch t.AccountType {
	case AccountPersonal, AccountBusiness:
	default:
		return fmt.Errorf("transaction: invalid account_type %q", t.AccountType)
	}
	switch t.CustomerRiskRating {
	case RatingLow, RatingMedium, RatingHigh:
	default:
		return fmt.Errorf("transaction: invalid customer_risk_rating %q", t.CustomerRiskRating)
	}
	return nil
}
