package wompi

// WidgetParams are the signed parameters the vendor checkout requires for
// one attempt. They come verbatim from the backend-issued payment session.
type WidgetParams struct {
	Currency      string `json:"currency"`
	AmountInCents int64  `json:"amount_in_cents"`
	Reference     string `json:"reference"`
	PublicKey     string `json:"public_key"`
	Signature     struct {
		Integrity string `json:"integrity"`
	} `json:"signature"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// Transaction is the vendor's view of a checkout outcome.
type Transaction struct {
	ID            string `json:"id"`
	Status        string `json:"status"`
	Reference     string `json:"reference"`
	AmountInCents int64  `json:"amount_in_cents"`
	CreatedAt     string `json:"created_at"`
}

// WidgetError is a vendor-reported failure.
type WidgetError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// WidgetResult is delivered to the open callback exactly once. A nil
// Transaction with a nil Error means the user dismissed the checkout.
type WidgetResult struct {
	Transaction *Transaction
	Error       *WidgetError
}

// MerchantInfo is the public merchant descriptor fetched once per process,
// the equivalent of loading the vendor's integration script.
type MerchantInfo struct {
	Name            string   `json:"name"`
	PublicKey       string   `json:"public_key"`
	AcceptanceToken string   `json:"acceptance_token,omitempty"`
	Currencies      []string `json:"accepted_currencies,omitempty"`
}
