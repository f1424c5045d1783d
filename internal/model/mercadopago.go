package model

type MercadoPagoItem struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
	CurrencyID  string  `json:"currency_id"`
}

type MercadoPagoPayer struct {
	Email string `json:"email,omitempty"`
}

type MercadoPagoBackURLs struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
	Pending string `json:"pending"`
}

type MercadoPagoPreferenceRequest struct {
	Items             []MercadoPagoItem   `json:"items"`
	Payer             MercadoPagoPayer    `json:"payer"`
	BackURLs          MercadoPagoBackURLs `json:"back_urls"`
	AutoReturn        string              `json:"auto_return,omitempty"`
	BinaryMode        bool                `json:"binary_mode"`
	ExternalReference string              `json:"external_reference"`
	NotificationURL   string              `json:"notification_url"`
}

type MercadoPagoPreference struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

type MercadoPagoPayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
}

type MercadoPagoErrorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Status  int    `json:"status"`
}

// MercadoPagoNotification is the webhook body. Older IPN deliveries only
// carry topic and id in the query string.
type MercadoPagoNotification struct {
	ID     int64  `json:"id"`
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID string `json:"id"`
	} `json:"data"`
}
