package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Accessory is a cosmetic item an alpaca can wear.
type Accessory string

const (
	AccessoryNone        Accessory = "None"
	AccessoryGoldChain   Accessory = "Gold Chain"
	AccessorySilkScarf   Accessory = "Silk Scarf"
	AccessoryTopHat      Accessory = "Top Hat"
	AccessoryDiamondStud Accessory = "Diamond Stud"
)

// IsValid reports whether a is one of the known accessories.
func (a Accessory) IsValid() bool {
	switch a {
	case AccessoryNone, AccessoryGoldChain, AccessorySilkScarf, AccessoryTopHat, AccessoryDiamondStud:
		return true
	}
	return false
}

// SystemOwner is the sentinel owner name for alpacas held by the system
// rather than a human bidder. System-held alpacas skip secret verification
// on the customization path.
const SystemOwner = "System DAO"

// Factory defaults restored on every ownership transfer.
const (
	DefaultColor       = "White"
	DefaultStableColor = "#795548"
)

// DefaultName returns the factory display name for an alpaca id.
func DefaultName(id int64) string {
	return fmt.Sprintf("Alpaca #%d", id)
}

// Alpaca is the scarce, ownable asset. Amounts are in the smallest currency
// unit and CurrentValue is always positive.
type Alpaca struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Color           string           `json:"color"`
	StableColor     string           `json:"stable_color"`
	Accessory       Accessory        `json:"accessory"`
	BackgroundImage *string          `json:"background_image,omitempty"`
	CurrentValue    int64            `json:"current_value"`
	OwnerName       string           `json:"owner_name"`
	SecretHash      string           `json:"-"` // One-way hash, never the plaintext
	LastTransferAt  time.Time        `json:"last_transfer_at"`
	History         []TransferRecord `json:"history"`
}

// TransferRecord is one historical ownership change. Records are immutable
// once appended and History keeps them most-recent-first.
type TransferRecord struct {
	ID            uuid.UUID `json:"id"`
	AlpacaID      int64     `json:"alpaca_id"`
	OccurredAt    time.Time `json:"occurred_at"`
	PreviousOwner string    `json:"previous_owner"`
	NewOwner      string    `json:"new_owner"`
	Amount        int64     `json:"amount"`
}

// InvalidBidError is returned when a bid does not strictly exceed the
// current value.
type InvalidBidError struct {
	Amount       int64
	CurrentValue int64
}

func (e *InvalidBidError) Error() string {
	return fmt.Sprintf("bid amount %d must be greater than current value %d", e.Amount, e.CurrentValue)
}

// IsSystemOwned reports whether the alpaca is held by the system sentinel.
func (a *Alpaca) IsSystemOwned() bool {
	return a.OwnerName == SystemOwner
}

// IsBidAcceptable reports whether amount can take over the alpaca.
// Equal bids are rejected: a takeover requires economically outbidding
// the incumbent.
func (a *Alpaca) IsBidAcceptable(amount int64) bool {
	return amount > a.CurrentValue
}

// TransferOwnership applies a hostile takeover. On success it prepends a
// TransferRecord to History, factory-resets the cosmetic fields, and installs
// the new owner, value, secret hash, and transfer timestamp. On failure the
// alpaca is left untouched and an *InvalidBidError is returned.
//
// StableColor deliberately survives the reset: the stable belongs to the
// paddock, not the previous owner.
func (a *Alpaca) TransferOwnership(newOwner string, amount int64, secretHash string, now time.Time) error {
	if !a.IsBidAcceptable(amount) {
		return &InvalidBidError{Amount: amount, CurrentValue: a.CurrentValue}
	}

	record := TransferRecord{
		ID:            uuid.New(),
		AlpacaID:      a.ID,
		OccurredAt:    now,
		PreviousOwner: a.OwnerName,
		NewOwner:      newOwner,
		Amount:        amount,
	}
	a.History = append([]TransferRecord{record}, a.History...)

	a.Name = DefaultName(a.ID)
	a.Color = DefaultColor
	a.Accessory = AccessoryNone
	a.BackgroundImage = nil

	a.OwnerName = newOwner
	a.CurrentValue = amount
	a.SecretHash = secretHash
	a.LastTransferAt = now

	return nil
}
