package pending

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/angelmondragon/momopay/internal/intent"
	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
)

// SchemaVersion is the record layout written by this package.
const SchemaVersion = 1

// SlotName names the single durable slot.
const SlotName = "pendingIdempotencyKey"

// Record is the durable marker of an intent that may have reached the backend.
// Its json tags describe the API view; the stored layout is written by Encode.
type Record struct {
	Version      int            `json:"version"`
	Key          string         `json:"key"`
	Payload      intent.Payload `json:"payload"`
	AttemptCount int            `json:"attemptCount"`
	CreatedAt    time.Time      `json:"createdAt"`
}

// NewRecord starts a record for a freshly built payload.
func NewRecord(payload intent.Payload, now time.Time) Record {
	return Record{
		Version:   SchemaVersion,
		Key:       payload.IdempotencyKey,
		Payload:   payload,
		CreatedAt: now,
	}
}

// WithAttempt returns a copy carrying one more resubmission.
func (r Record) WithAttempt() Record {
	r.AttemptCount++
	return r
}

type recordWire struct {
	Version      *int            `json:"version,omitempty"`
	Key          string          `json:"key"`
	Payload      *intent.Payload `json:"payload"`
	AttemptCount int             `json:"attemptCount"`
	CreatedAt    int64           `json:"createdAt"`
}

// Encode serializes r using the current schema. CreatedAt is written as Unix milliseconds.
func Encode(r Record) ([]byte, error) {
	if err := r.validate(); err != nil {
		return nil, err
	}
	version := SchemaVersion
	payload := r.Payload
	var createdAt int64
	if !r.CreatedAt.IsZero() {
		createdAt = r.CreatedAt.UnixMilli()
	}
	return json.Marshal(recordWire{
		Version:      &version,
		Key:          r.Key,
		Payload:      &payload,
		AttemptCount: r.AttemptCount,
		CreatedAt:    createdAt,
	})
}

// Decode parses a stored record. Records without a version are the legacy
// layout and are upgraded in memory. Anything it cannot trust is CORRUPT_RECORD.
func Decode(raw []byte) (*Record, error) {
	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	var wire recordWire
	if err := decoder.Decode(&wire); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeCorruptRecord, err, "pending record is not valid json")
	}
	if decoder.More() {
		return nil, pkgerrors.New(pkgerrors.CodeCorruptRecord, "pending record has trailing data")
	}

	version := SchemaVersion
	if wire.Version != nil {
		version = *wire.Version
	}
	if version != SchemaVersion {
		return nil, pkgerrors.New(pkgerrors.CodeCorruptRecord, "unsupported pending record version").
			WithDetails(map[string]any{"version": version})
	}
	if wire.Payload == nil {
		return nil, pkgerrors.New(pkgerrors.CodeCorruptRecord, "pending record has no payload")
	}

	record := &Record{
		Version:      SchemaVersion,
		Key:          wire.Key,
		Payload:      *wire.Payload,
		AttemptCount: wire.AttemptCount,
	}
	if wire.CreatedAt > 0 {
		record.CreatedAt = time.UnixMilli(wire.CreatedAt).UTC()
	}
	if err := record.validate(); err != nil {
		return nil, err
	}
	return record, nil
}

func (r Record) validate() error {
	switch {
	case !intent.ValidKey(r.Key):
		return pkgerrors.New(pkgerrors.CodeCorruptRecord, "pending record key is not a uuid")
	case r.Payload.IdempotencyKey != r.Key:
		return pkgerrors.New(pkgerrors.CodeCorruptRecord, "pending record payload key does not match record key")
	case r.AttemptCount < 0:
		return pkgerrors.New(pkgerrors.CodeCorruptRecord, "pending record attempt count is negative")
	}
	return nil
}
