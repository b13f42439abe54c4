// Package sqlite backs the tracker with the strategy platform's local
// database. The external engine owns the lifecycle of these rows; the
// tracker reads snapshots from them and writes only accepted human edits.
package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"legtracker/internal/risk"
	"legtracker/internal/store/model"
	"legtracker/internal/strategy"
)

type Store struct {
	db    *gorm.DB
	nowFn func() time.Time
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	return newStore(db)
}

// NewStoreFromDB wraps an existing gorm handle, for tests.
func NewStoreFromDB(db *gorm.DB) (*Store, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db cannot be nil")
	}
	return newStore(db)
}

func newStore(db *gorm.DB) (*Store, error) {
	models := []interface{}{
		&model.StrategyInstanceModel{},
		&model.LegModel{},
		&model.TradeHistoryModel{},
	}
	if err := db.AutoMigrate(models...); err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	return &Store{db: db, nowFn: time.Now}, nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ListInstances assembles every persisted instance with its legs and trade
// history.
func (s *Store) ListInstances(ctx context.Context) ([]*strategy.Instance, error) {
	var instances []model.StrategyInstanceModel
	if err := s.db.WithContext(ctx).Find(&instances).Error; err != nil {
		return nil, err
	}
	if len(instances) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(instances))
	for _, in := range instances {
		ids = append(ids, in.InstanceID)
	}
	var legs []model.LegModel
	if err := s.db.WithContext(ctx).Where("instance_id IN ?", ids).Find(&legs).Error; err != nil {
		return nil, err
	}
	var history []model.TradeHistoryModel
	if err := s.db.WithContext(ctx).Where("instance_id IN ?", ids).Find(&history).Error; err != nil {
		return nil, err
	}
	legsByInstance := make(map[string][]model.LegModel)
	for _, lm := range legs {
		legsByInstance[lm.InstanceID] = append(legsByInstance[lm.InstanceID], lm)
	}
	historyByInstance := make(map[string][]model.TradeHistoryModel)
	for _, hm := range history {
		historyByInstance[hm.InstanceID] = append(historyByInstance[hm.InstanceID], hm)
	}
	out := make([]*strategy.Instance, 0, len(instances))
	for _, in := range instances {
		out = append(out, instanceFromModels(in, legsByInstance[in.InstanceID], historyByInstance[in.InstanceID]))
	}
	return out, nil
}

// SubmitOverride writes an accepted SL/target value onto the leg row.
// Validation has already happened upstream.
func (s *Store) SubmitOverride(ctx context.Context, instanceID, legKey string, typ risk.OverrideType, value float64) error {
	column := "sl_price"
	if typ == risk.OverrideTarget {
		column = "target_price"
	}
	now := s.nowFn()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.LegModel{}).
			Where("instance_id = ? AND leg_key = ?", instanceID, legKey).
			Updates(map[string]interface{}{column: value, "updated_at": now.UnixMilli()})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("leg %s/%s not found", instanceID, legKey)
		}
		return touchInstance(tx, instanceID, now)
	})
}

// SubmitManualExit records a human exit request: the leg flips to
// PENDING_EXIT with the requested price and the engine completes the exit
// on its next cycle.
func (s *Store) SubmitManualExit(ctx context.Context, instanceID, legKey string, exitPrice float64, exitType strategy.ExitType) error {
	now := s.nowFn()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.LegModel{}).
			Where("instance_id = ? AND leg_key = ?", instanceID, legKey).
			Updates(map[string]interface{}{
				"status":     string(strategy.StatusPendingExit),
				"exit_price": exitPrice,
				"updated_at": now.UnixMilli(),
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("leg %s/%s not found", instanceID, legKey)
		}
		return touchInstance(tx, instanceID, now)
	})
}

// CreateManualLeg inserts a manually tracked leg on the instance.
func (s *Store) CreateManualLeg(ctx context.Context, instanceID string, leg strategy.Leg) error {
	now := s.nowFn()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.StrategyInstanceModel{}).
			Where("instance_id = ?", instanceID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return fmt.Errorf("instance %s not found", instanceID)
		}
		lm := legToModel(instanceID, leg, now)
		if err := tx.Create(&lm).Error; err != nil {
			return err
		}
		return touchInstance(tx, instanceID, now)
	})
}

// DeleteInstance removes the instance, its legs and its trade history in
// one transaction.
func (s *Store) DeleteInstance(ctx context.Context, instanceID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instance_id = ?", instanceID).Delete(&model.TradeHistoryModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("instance_id = ?", instanceID).Delete(&model.LegModel{}).Error; err != nil {
			return err
		}
		res := tx.Where("instance_id = ?", instanceID).Delete(&model.StrategyInstanceModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("instance %s not found", instanceID)
		}
		return nil
	})
}

// SaveInstance upserts a full instance snapshot. The engine normally owns
// these rows; this exists for seeding and recovery tooling.
func (s *Store) SaveInstance(ctx context.Context, in *strategy.Instance) error {
	if in == nil || in.ID == "" {
		return fmt.Errorf("instance id cannot be empty")
	}
	now := s.nowFn()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		row := model.StrategyInstanceModel{
			InstanceID:  in.ID,
			Name:        in.Name,
			Status:      string(in.Status),
			ConfigJSON:  []byte(in.Config),
			CreatedAt:   in.CreatedAt,
			LastUpdated: now,
		}
		if err := tx.Save(&row).Error; err != nil {
			return err
		}
		if err := tx.Where("instance_id = ?", in.ID).Delete(&model.LegModel{}).Error; err != nil {
			return err
		}
		for _, leg := range in.LegsSorted() {
			lm := legToModel(in.ID, *leg, now)
			if err := tx.Create(&lm).Error; err != nil {
				return err
			}
		}
		if err := tx.Where("instance_id = ?", in.ID).Delete(&model.TradeHistoryModel{}).Error; err != nil {
			return err
		}
		for i, rec := range in.TradeHistory {
			hm := model.TradeHistoryModel{
				InstanceID: in.ID,
				Seq:        i,
				LegKey:     rec.LegKey,
				Symbol:     rec.Symbol,
				Exchange:   rec.Exchange,
				Side:       string(rec.Side),
				Quantity:   rec.Quantity,
				EntryPrice: rec.EntryPrice,
				EntryTime:  rec.EntryTime,
				ExitPrice:  rec.ExitPrice,
				ExitTime:   rec.ExitTime,
				ExitType:   string(rec.ExitType),
				Pnl:        rec.Pnl,
			}
			if err := tx.Create(&hm).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func touchInstance(tx *gorm.DB, instanceID string, now time.Time) error {
	return tx.Model(&model.StrategyInstanceModel{}).
		Where("instance_id = ?", instanceID).
		Update("last_updated", now).Error
}
