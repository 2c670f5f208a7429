package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tickforge/straddlebot/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STORAGE - SQLite persistence for trades and open positions
// ═══════════════════════════════════════════════════════════════════════════════
//
// Two tables: an append-only trade log and an open-position snapshot keyed
// by position ID. A disabled database (empty path) satisfies every call as
// a no-op so dry runs need no filesystem.
//
// ═══════════════════════════════════════════════════════════════════════════════

// TradeRecord is one closed trade, append-only.
type TradeRecord struct {
	ID         uint   `gorm:"primarykey"`
	PositionID string `gorm:"index"`
	Symbol     string `gorm:"index"`
	Side       string
	EntryPrice float64
	EntryTime  time.Time
	ExitPrice  float64
	ExitTime   time.Time `gorm:"index"`
	Quantity   float64
	Leverage   int
	ExitReason string
	GrossPnl   decimal.Decimal `gorm:"type:decimal(20,8)"`
	FeesPaid   decimal.Decimal `gorm:"type:decimal(20,8)"`
	NetPnl     decimal.Decimal `gorm:"type:decimal(20,8)"`
	CreatedAt  time.Time
}

// OpenPositionRecord mirrors a live position so a restart can resume its
// trailing stop where it left off.
type OpenPositionRecord struct {
	PositionID   string `gorm:"primarykey"`
	Symbol       string `gorm:"index"`
	Side         string
	EntryPrice   float64
	EntryTime    time.Time
	Quantity     float64
	Leverage     int
	SignalID     string
	ExtremePrice float64
	StopPrice    float64
	UpdatedAt    time.Time
}

// Database wraps the gorm handle. enabled=false makes every method a no-op.
type Database struct {
	db      *gorm.DB
	enabled bool
}

// New opens (and migrates) the SQLite database at path. An empty path
// returns a disabled database.
func New(path string) (*Database, error) {
	if path == "" {
		log.Info().Msg("Database disabled (no path configured)")
		return &Database{}, nil
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.AutoMigrate(&TradeRecord{}, &OpenPositionRecord{}); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}

	log.Info().Str("path", path).Msg("💾 Database ready")
	return &Database{db: db, enabled: true}, nil
}

// SaveTrade appends a closed trade.
func (d *Database) SaveTrade(t types.Trade) error {
	if !d.enabled {
		return nil
	}
	rec := TradeRecord{
		PositionID: t.PositionID,
		Symbol:     t.Symbol,
		Side:       string(t.Side),
		EntryPrice: t.EntryPrice,
		EntryTime:  t.EntryTime,
		ExitPrice:  t.ExitPrice,
		ExitTime:   t.ExitTime,
		Quantity:   t.Quantity,
		Leverage:   t.Leverage,
		ExitReason: string(t.ExitReason),
		GrossPnl:   t.GrossPnl,
		FeesPaid:   t.FeesPaid,
		NetPnl:     t.NetPnl,
	}
	return d.db.Create(&rec).Error
}

// SaveOpenPosition upserts the position snapshot.
func (d *Database) SaveOpenPosition(p types.Position) error {
	if !d.enabled {
		return nil
	}
	rec := OpenPositionRecord{
		PositionID:   p.ID,
		Symbol:       p.Symbol,
		Side:         string(p.Side),
		EntryPrice:   p.EntryPrice,
		EntryTime:    p.EntryTime,
		Quantity:     p.Quantity,
		Leverage:     p.Leverage,
		SignalID:     p.SignalID,
		ExtremePrice: p.ExtremePrice,
		StopPrice:    p.StopPrice,
	}
	return d.db.Save(&rec).Error
}

// DeleteOpenPosition removes a settled position's snapshot.
func (d *Database) DeleteOpenPosition(id string) error {
	if !d.enabled {
		return nil
	}
	return d.db.Delete(&OpenPositionRecord{}, "position_id = ?", id).Error
}

// LoadOpenPositions returns every persisted open position for resume.
func (d *Database) LoadOpenPositions() ([]types.Position, error) {
	if !d.enabled {
		return nil, nil
	}
	var recs []OpenPositionRecord
	if err := d.db.Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]types.Position, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.Position{
			ID:           r.PositionID,
			Symbol:       r.Symbol,
			Side:         types.Side(r.Side),
			EntryPrice:   r.EntryPrice,
			EntryTime:    r.EntryTime,
			Quantity:     r.Quantity,
			Leverage:     r.Leverage,
			SignalID:     r.SignalID,
			ExtremePrice: r.ExtremePrice,
			StopPrice:    r.StopPrice,
		})
	}
	return out, nil
}

// RecentTrades returns the latest n trades, newest first.
func (d *Database) RecentTrades(n int) ([]TradeRecord, error) {
	if !d.enabled {
		return nil, nil
	}
	var recs []TradeRecord
	err := d.db.Order("exit_time desc").Limit(n).Find(&recs).Error
	return recs, err
}

// Close releases the underlying connection.
func (d *Database) Close() error {
	if !d.enabled {
		return nil
	}
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
