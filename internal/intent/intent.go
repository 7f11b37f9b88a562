package intent

import (
	"encoding/json"
	"strings"

	"github.com/angelmondragon/momopay/pkg/enums"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"github.com/angelmondragon/momopay/pkg/validation"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Input is what the payer supplies for a new charge.
type Input struct {
	UserID   string          `json:"userId" validate:"required"`
	Email    string          `json:"email" validate:"required,email"`
	Name     string          `json:"name" validate:"required"`
	Amount   decimal.Decimal `json:"amount"`
	Currency enums.Currency  `json:"currency" validate:"required,oneof=MWK USD"`
	Mobile   string          `json:"mobile" validate:"required,mobile"`
	Provider enums.Provider  `json:"provider" validate:"required,oneof=airtel tnm"`
}

// Normalize trims free-text fields and canonicalizes enum casing.
func (in Input) Normalize() Input {
	in.UserID = strings.TrimSpace(in.UserID)
	in.Email = strings.TrimSpace(in.Email)
	in.Name = strings.TrimSpace(in.Name)
	in.Mobile = strings.TrimSpace(in.Mobile)
	in.Currency = enums.Currency(strings.ToUpper(strings.TrimSpace(string(in.Currency))))
	in.Provider = enums.Provider(strings.ToLower(strings.TrimSpace(string(in.Provider))))
	return in
}

// Validate normalizes and checks the input. Failures are VALIDATION_ERROR.
func (in Input) Validate() error {
	in = in.Normalize()
	if err := validation.Struct(&in); err != nil {
		return err
	}
	if !in.Amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
			WithDetails(map[string]string{"amount": "must be greater than 0"})
	}
	return nil
}

// Payload is the immutable request body re-sent verbatim on every attempt of one intent.
type Payload struct {
	UserID         string          `json:"userId"`
	Email          string          `json:"email"`
	Name           string          `json:"name"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       enums.Currency  `json:"currency"`
	Mobile         string          `json:"mobile"`
	Provider       enums.Provider  `json:"provider"`
	IdempotencyKey string          `json:"idempotencyKey"`
}

type payloadWire struct {
	UserID         string         `json:"userId"`
	Email          string         `json:"email"`
	Name           string         `json:"name"`
	Amount         json.Number    `json:"amount"`
	Currency       enums.Currency `json:"currency"`
	Mobile         string         `json:"mobile"`
	Provider       enums.Provider `json:"provider"`
	IdempotencyKey string         `json:"idempotencyKey"`
}

// MarshalJSON writes the amount as a JSON number, which is what the backend expects.
func (p Payload) MarshalJSON() ([]byte, error) {
	return json.Marshal(payloadWire{
		UserID:         p.UserID,
		Email:          p.Email,
		Name:           p.Name,
		Amount:         json.Number(p.Amount.String()),
		Currency:       p.Currency,
		Mobile:         p.Mobile,
		Provider:       p.Provider,
		IdempotencyKey: p.IdempotencyKey,
	})
}

// Equal reports whether two payloads describe the same charge.
func (p Payload) Equal(other Payload) bool {
	return p.UserID == other.UserID &&
		p.Email == other.Email &&
		p.Name == other.Name &&
		p.Amount.Equal(other.Amount) &&
		p.Currency == other.Currency &&
		p.Mobile == other.Mobile &&
		p.Provider == other.Provider &&
		p.IdempotencyKey == other.IdempotencyKey
}

// NewKey returns a fresh idempotency key.
func NewKey() string {
	return uuid.NewString()
}

// ValidKey reports whether key is a well-formed UUID.
func ValidKey(key string) bool {
	if len(key) != 36 {
		return false
	}
	_, err := uuid.Parse(key)
	return err == nil
}

// Build validates in and snapshots it into a payload carrying key.
func Build(in Input, key string) (Payload, error) {
	if err := in.Validate(); err != nil {
		return Payload{}, err
	}
	if !ValidKey(key) {
		return Payload{}, pkgerrors.New(pkgerrors.CodeValidation, "idempotency key must be a uuid")
	}
	in = in.Normalize()
	return Payload{
		UserID:         in.UserID,
		Email:          in.Email,
		Name:           in.Name,
		Amount:         in.Amount,
		Currency:       in.Currency,
		Mobile:         in.Mobile,
		Provider:       in.Provider,
		IdempotencyKey: key,
	}, nil
}
