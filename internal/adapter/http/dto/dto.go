package dto

// LoginRequest is the request body for admin login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse is the response body for successful login.
type LoginResponse struct {
	Token  string `json:"token"`
	Expiry int64  `json:"expiry"` // Unix timestamp
}

// BidRequest is the request body for placing a bid on an alpaca.
type BidRequest struct {
	Amount     int64   `json:"amount" binding:"required,gt=0"`
	NewOwner   string  `json:"new_owner" binding:"required,min=1,max=50"`
	NewSecret  string  `json:"new_secret" binding:"required,min=1,max=128"`
	PaymentRef *string `json:"payment_ref,omitempty"`
}

// CustomizeRequest is the request body for updating an alpaca's cosmetics.
// Absent fields are left untouched. An empty background_image clears it.
type CustomizeRequest struct {
	Secret          *string `json:"secret,omitempty"`
	Name            *string `json:"name,omitempty" binding:"omitempty,min=1,max=50"`
	Color           *string `json:"color,omitempty" binding:"omitempty,min=1,max=30"`
	StableColor     *string `json:"stable_color,omitempty" binding:"omitempty,hexcolor"`
	Accessory       *string `json:"accessory,omitempty" binding:"omitempty,accessory"`
	BackgroundImage *string `json:"background_image,omitempty" binding:"omitempty,max=500"`
}

// TransferResponse is one ledger entry in an alpaca response.
type TransferResponse struct {
	ID            string `json:"id"`
	OccurredAt    string `json:"occurred_at"`
	PreviousOwner string `json:"previous_owner"`
	NewOwner      string `json:"new_owner"`
	Amount        int64  `json:"amount"`
}

// AlpacaResponse is the public view of an alpaca. The secret hash is
// never exposed.
type AlpacaResponse struct {
	ID              int64              `json:"id"`
	Name            string             `json:"name"`
	Color           string             `json:"color"`
	StableColor     string             `json:"stable_color"`
	Accessory       string             `json:"accessory"`
	BackgroundImage *string            `json:"background_image,omitempty"`
	CurrentValue    int64              `json:"current_value"`
	OwnerName       string             `json:"owner_name"`
	LastTransferAt  string             `json:"last_transfer_at"`
	History         []TransferResponse `json:"history"`
}
