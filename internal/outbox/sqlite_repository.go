package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/firealert/firealert/internal/alert"
)

// queuedDraft is the sqlite row for one queued draft. The autoincrement
// sequence preserves FIFO order across restarts.
type queuedDraft struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	DraftID    string `gorm:"uniqueIndex;size:64"`
	Payload    []byte
	EnqueuedAt time.Time
}

func (queuedDraft) TableName() string { return "outbox_drafts" }

// SQLiteStore is a Store persisted in a local sqlite database, so queued
// alerts survive process restarts.
type SQLiteStore struct {
	db *gorm.DB
}

// NewSQLiteStore opens (and if needed migrates) the outbox database at the
// given path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening outbox database: %w", err)
	}
	if err := db.AutoMigrate(&queuedDraft{}); err != nil {
		return nil, fmt.Errorf("migrating outbox schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Append adds the draft at the tail unless its ID is already queued.
func (s *SQLiteStore) Append(ctx context.Context, d *alert.Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encoding draft: %w", err)
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing queuedDraft
		err := tx.Where("draft_id = ?", d.ID).First(&existing).Error
		if err == nil {
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return tx.Create(&queuedDraft{
			DraftID:    d.ID,
			Payload:    payload,
			EnqueuedAt: time.Now().UTC(),
		}).Error
	})
}

// Remove deletes the entry with the given draft ID.
func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("draft_id = ?", id).Delete(&queuedDraft{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrDraftNotFound
	}
	return nil
}

// List returns a snapshot of the queue in FIFO order.
func (s *SQLiteStore) List(ctx context.Context) ([]*alert.Draft, error) {
	var rows []queuedDraft
	if err := s.db.WithContext(ctx).Order("seq asc").Find(&rows).Error; err != nil {
		return nil, err
	}

	out := make([]*alert.Draft, 0, len(rows))
	for _, row := range rows {
		var d alert.Draft
		if err := json.Unmarshal(row.Payload, &d); err != nil {
			return nil, fmt.Errorf("decoding draft %s: %w", row.DraftID, err)
		}
		out = append(out, &d)
	}
	return out, nil
}

// Len returns the number of queued drafts.
func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&queuedDraft{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}
