package pending

import (
	"context"
	"errors"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/momopay/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type pendingRow struct {
	ClientID  string `gorm:"column:client_id;primaryKey"`
	Slot      string `gorm:"column:slot;primaryKey"`
	Payload   string `gorm:"column:payload"`
	UpdatedAt time.Time
}

func (pendingRow) TableName() string { return "pending_transactions" }

// SQLStore keeps the slot in the pending_transactions table, one row per client.
type SQLStore struct {
	db       *gorm.DB
	clientID string
	now      func() time.Time
}

func NewSQLStore(db *gorm.DB, clientID string) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	clientID = strings.TrimSpace(clientID)
	if clientID == "" {
		return nil, errors.New("client id is required")
	}
	return &SQLStore{db: db, clientID: clientID, now: time.Now}, nil
}

func (s *SQLStore) Read(ctx context.Context) (*Record, error) {
	var row pendingRow
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND slot = ?", s.clientID, SlotName).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read pending record")
	}
	return Decode([]byte(row.Payload))
}

func (s *SQLStore) Write(ctx context.Context, record Record) error {
	raw, err := Encode(record)
	if err != nil {
		return err
	}
	row := pendingRow{
		ClientID:  s.clientID,
		Slot:      SlotName,
		Payload:   string(raw),
		UpdatedAt: s.now().UTC(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "client_id"}, {Name: "slot"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write pending record")
	}
	return nil
}

func (s *SQLStore) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).
		Where("client_id = ? AND slot = ?", s.clientID, SlotName).
		Delete(&pendingRow{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear pending record")
	}
	return nil
}

func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
