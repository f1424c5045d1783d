package model

type PaypalLink struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}

type PaypalAmount struct {
	Currency string `json:"currency_code"`
	Value    string `json:"value"`
}

type PaypalPurchaseUnit struct {
	ReferenceID string          `json:"reference_id"`
	Description string          `json:"description,omitempty"`
	Amount      *PaypalAmount   `json:"amount,omitempty"`
	Payments    *PaypalPayments `json:"payments,omitempty"`
}

type PaypalApplicationContext struct {
	ReturnURL  string `json:"return_url"`
	CancelURL  string `json:"cancel_url"`
	BrandName  string `json:"brand_name,omitempty"`
	UserAction string `json:"user_action,omitempty"`
}

type PaypalCreateOrderRequest struct {
	Intent             string                   `json:"intent"`
	PurchaseUnits      []PaypalPurchaseUnit     `json:"purchase_units"`
	ApplicationContext PaypalApplicationContext `json:"application_context"`
}

type PaypalCapture struct {
	ID     string       `json:"id"`
	Status string       `json:"status"`
	Amount PaypalAmount `json:"amount"`
}

type PaypalPayments struct {
	Captures []PaypalCapture `json:"captures,omitempty"`
}

type PaypalPayer struct {
	PayerID string `json:"payer_id"`
	Email   string `json:"email_address"`
}

type PaypalOrder struct {
	ID            string               `json:"id"`
	Status        string               `json:"status"`
	Links         []PaypalLink         `json:"links"`
	Payer         PaypalPayer          `json:"payer"`
	PurchaseUnits []PaypalPurchaseUnit `json:"purchase_units"`
}

type PaypalRelatedIDs struct {
	OrderID string `json:"order_id"`
}

type PaypalSupplementaryData struct {
	RelatedIDs PaypalRelatedIDs `json:"related_ids"`
}

// PaypalResource is the union of the resource shapes carried by the
// webhook events we subscribe to: a capture or a whole order.
type PaypalResource struct {
	ID                string                  `json:"id"`
	Status            string                  `json:"status"`
	PurchaseUnits     []PaypalPurchaseUnit    `json:"purchase_units"`
	SupplementaryData PaypalSupplementaryData `json:"supplementary_data"`
}

type PaypalWebhookEvent struct {
	ID         string         `json:"id"`
	EventType  string         `json:"event_type"`
	CreateTime string         `json:"create_time"`
	Resource   PaypalResource `json:"resource"`
}
