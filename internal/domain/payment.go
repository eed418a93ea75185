package domain

import "github.com/shopspring/decimal"

const CurrencyUSD = "USD"

type PaymentIntentRequest struct {
	OrderID  string          `json:"order_id"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

type PaymentIntent struct {
	ID           string          `json:"id"`
	OrderID      string          `json:"order_id"`
	ClientSecret string          `json:"client_secret"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}
