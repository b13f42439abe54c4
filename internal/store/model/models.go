package model

import (
	"time"

	"gorm.io/datatypes"
)

// StrategyInstanceModel is the persisted strategy instance row. Config is
// opaque to the tracker and stored as raw JSON.
type StrategyInstanceModel struct {
	InstanceID  string         `gorm:"column:instance_id;primaryKey"`
	Name        string         `gorm:"column:strategy_name;index"`
	Status      string         `gorm:"column:status;index"`
	ConfigJSON  datatypes.JSON `gorm:"column:config_json;type:TEXT"`
	CreatedAt   *time.Time     `gorm:"column:created_at"`
	LastUpdated time.Time      `gorm:"column:last_updated"`
}

func (StrategyInstanceModel) TableName() string { return "strategy_instances" }

// LegModel is one leg row. Optional engine-reported fields are nullable so
// "never reported" survives the round trip as nil, not zero.
type LegModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	InstanceID string `gorm:"column:instance_id;index:idx_leg_instance_key,unique"`
	LegKey     string `gorm:"column:leg_key;index:idx_leg_instance_key,unique"`

	Symbol   string   `gorm:"column:symbol"`
	Exchange string   `gorm:"column:exchange"`
	Side     string   `gorm:"column:side"`
	Quantity *float64 `gorm:"column:quantity"`
	Status   string   `gorm:"column:status;index"`

	EntryPrice *float64   `gorm:"column:entry_price"`
	EntryTime  *time.Time `gorm:"column:entry_time"`
	ExitPrice  *float64   `gorm:"column:exit_price"`
	ExitTime   *time.Time `gorm:"column:exit_time"`

	SLPrice     *float64 `gorm:"column:sl_price"`
	TargetPrice *float64 `gorm:"column:target_price"`

	WaitBaselinePrice *float64 `gorm:"column:wait_baseline_price"`
	WaitTradePercent  *float64 `gorm:"column:wait_trade_percent"`
	WaitTriggerPrice  *float64 `gorm:"column:wait_trigger_price"`

	IsMainLeg   bool   `gorm:"column:is_main_leg"`
	LegPairName string `gorm:"column:leg_pair_name"`

	ReentryCount   int  `gorm:"column:reentry_count"`
	ReentryLimit   *int `gorm:"column:reentry_limit"`
	ReexecuteCount int  `gorm:"column:reexecute_count"`
	ReexecuteLimit *int `gorm:"column:reexecute_limit"`

	RealizedPnl *float64 `gorm:"column:realized_pnl"`
	TotalPnl    *float64 `gorm:"column:total_pnl"`

	UpdatedAtUnix int64 `gorm:"column:updated_at"`
}

func (LegModel) TableName() string { return "strategy_legs" }

// TradeHistoryModel is one archived entry→exit occurrence. Rows are append
// only; Seq preserves the engine's archive order.
type TradeHistoryModel struct {
	ID         int64  `gorm:"column:id;primaryKey;autoIncrement"`
	InstanceID string `gorm:"column:instance_id;index"`
	Seq        int    `gorm:"column:seq"`

	LegKey     string     `gorm:"column:leg_key"`
	Symbol     string     `gorm:"column:symbol"`
	Exchange   string     `gorm:"column:exchange"`
	Side       string     `gorm:"column:side"`
	Quantity   float64    `gorm:"column:quantity"`
	EntryPrice float64    `gorm:"column:entry_price"`
	EntryTime  *time.Time `gorm:"column:entry_time"`
	ExitPrice  float64    `gorm:"column:exit_price"`
	ExitTime   *time.Time `gorm:"column:exit_time"`
	ExitType   string     `gorm:"column:exit_type"`
	Pnl        float64    `gorm:"column:pnl"`
}

func (TradeHistoryModel) TableName() string { return "trade_history" }
