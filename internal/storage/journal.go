// Package storage persists completed trades and lifecycle events to SQLite.
// The journal is write-mostly: the engine appends, the HTTP layer reads.
package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"tidebot/internal/engine"
	"tidebot/internal/position"
)

type tradeModel struct {
	ID          int64     `gorm:"column:id;primaryKey"`
	Symbol      string    `gorm:"column:symbol;index"`
	EntryPrice  float64   `gorm:"column:entry_price"`
	ExitPrice   float64   `gorm:"column:exit_price"`
	Quantity    float64   `gorm:"column:quantity"`
	RealizedPnL float64   `gorm:"column:realized_pnl"`
	Reason      string    `gorm:"column:reason"`
	EntryTime   time.Time `gorm:"column:entry_time"`
	ExitTime    time.Time `gorm:"column:exit_time;index"`
}

func (tradeModel) TableName() string { return "trades" }

type eventModel struct {
	ID       int64     `gorm:"column:id;primaryKey"`
	EventID  string    `gorm:"column:event_id;uniqueIndex"`
	Kind     string    `gorm:"column:kind;index"`
	Symbol   string    `gorm:"column:symbol;index"`
	At       time.Time `gorm:"column:at;index"`
	Action   string    `gorm:"column:action"`
	Reason   string    `gorm:"column:reason"`
	Price    float64   `gorm:"column:price"`
	Quantity float64   `gorm:"column:quantity"`
	OrderID  string    `gorm:"column:order_id"`
	Err      string    `gorm:"column:error"`
}

func (eventModel) TableName() string { return "events" }

// Journal stores trades and events using Gorm + SQLite.
type Journal struct {
	db *gorm.DB
}

func NewJournal(path string) (*Journal, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("journal: database path is empty")
	}
	if err := ensureDir(path); err != nil {
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
	if err := db.AutoMigrate(&tradeModel{}, &eventModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: allow a little parallelism for concurrent HTTP reads
	// while keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Journal{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	sqlDB, err := j.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (j *Journal) RecordTrade(trade position.Trade) error {
	row := tradeModel{
		Symbol:      trade.Symbol,
		EntryPrice:  trade.EntryPrice,
		ExitPrice:   trade.ExitPrice,
		Quantity:    trade.Quantity,
		RealizedPnL: trade.RealizedPnL,
		Reason:      trade.Reason,
		EntryTime:   trade.EntryTime,
		ExitTime:    trade.ExitTime,
	}
	return j.db.Create(&row).Error
}

func (j *Journal) RecordEvent(evt engine.Event) error {
	row := eventModel{
		EventID:  evt.ID,
		Kind:     string(evt.Kind),
		Symbol:   evt.Symbol,
		At:       evt.At,
		Action:   evt.Action,
		Reason:   evt.Reason,
		Price:    evt.Price,
		Quantity: evt.Quantity,
		OrderID:  evt.OrderID,
		Err:      evt.Err,
	}
	return j.db.Create(&row).Error
}

// Trades returns the most recent completed round trips, newest first.
func (j *Journal) Trades(limit int) ([]position.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []tradeModel
	if err := j.db.Order("exit_time DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]position.Trade, 0, len(rows))
	for _, row := range rows {
		out = append(out, position.Trade{
			Symbol:      row.Symbol,
			EntryPrice:  row.EntryPrice,
			ExitPrice:   row.ExitPrice,
			Quantity:    row.Quantity,
			RealizedPnL: row.RealizedPnL,
			Reason:      row.Reason,
			EntryTime:   row.EntryTime,
			ExitTime:    row.ExitTime,
		})
	}
	return out, nil
}

// Events returns recent lifecycle events, newest first, optionally filtered
// by symbol.
func (j *Journal) Events(limit int, symbol string) ([]engine.Event, error) {
	if limit <= 0 {
		limit = 200
	}
	q := j.db.Order("at DESC").Limit(limit)
	if symbol != "" {
		q = q.Where("symbol = ?", strings.ToUpper(symbol))
	}
	var rows []eventModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]engine.Event, 0, len(rows))
	for _, row := range rows {
		out = append(out, engine.Event{
			ID:       row.EventID,
			Kind:     engine.EventKind(row.Kind),
			Symbol:   row.Symbol,
			At:       row.At,
			Action:   row.Action,
			Reason:   row.Reason,
			Price:    row.Price,
			Quantity: row.Quantity,
			OrderID:  row.OrderID,
			Err:      row.Err,
		})
	}
	return out, nil
}
