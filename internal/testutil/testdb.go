// Package testutil opens migrated databases and seeds fixtures for tests.
package testutil

import (
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"betting-service/internal/database"
	"betting-service/internal/models"
)

// NewDB returns a migrated database private to the test. DATABASE_URL
// selects a MySQL server; otherwise an in-memory SQLite database is used.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()

	cfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	var (
		db  *gorm.DB
		err error
	)
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		db, err = gorm.Open(mysql.Open(dsn), cfg)
		if err != nil {
			t.Fatalf("open mysql: %v", err)
		}
	} else {
		name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()[:8]
		db, err = gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), cfg)
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			t.Fatalf("sqlite handle: %v", err)
		}
		// One connection serialises writers, so concurrency tests here never
		// contend on row locks or the wallet version guard. DATABASE_URL runs
		// them against MySQL.
		sqlDB.SetMaxOpenConns(1)
		t.Cleanup(func() { _ = sqlDB.Close() })
	}

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if os.Getenv("DATABASE_URL") != "" {
		truncate(t, db)
	}
	return db
}

func truncate(t testing.TB, db *gorm.DB) {
	t.Helper()
	all := database.Models()
	for i := len(all) - 1; i >= 0; i-- {
		if err := db.Session(&gorm.Session{AllowGlobalUpdate: true}).Unscoped().Delete(all[i]).Error; err != nil {
			t.Logf("truncate: %v", err)
		}
	}
}

func Money(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func SeedWallet(t testing.TB, db *gorm.DB, userID int, real, bonus string) models.Wallet {
	t.Helper()
	w := models.Wallet{
		UserId:       userID,
		Username:     fmt.Sprintf("user%d", userID),
		Currency:     "NGN",
		RealBalance:  Money(real),
		BonusBalance: Money(bonus),
		Version:      1,
		Status:       models.WalletActive,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	return w
}

func SeedMatch(t testing.TB, db *gorm.DB, status models.MatchStatus) models.Match {
	t.Helper()
	m := models.Match{
		HomeTeam:       "Enyimba",
		AwayTeam:       "Rangers",
		Status:         status,
		BettingEnabled: true,
		StartTime:      time.Now().UTC().Add(time.Hour),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("seed match: %v", err)
	}
	return m
}

// SeedMatchOdds creates Home, Draw and Away 1X2 prices for a match.
func SeedMatchOdds(t testing.TB, db *gorm.DB, matchID int, home, draw, away string) map[string]models.Odds {
	t.Helper()
	out := map[string]models.Odds{}
	for label, value := range map[string]string{models.LabelHome: home, models.LabelDraw: draw, models.LabelAway: away} {
		o := models.Odds{
			MatchId:    matchID,
			MarketCode: models.MarketMatchWinner,
			Selection:  label,
			Value:      Money(value),
			Status:     models.OddsActive,
		}
		if err := db.Create(&o).Error; err != nil {
			t.Fatalf("seed odds: %v", err)
		}
		out[label] = o
	}
	return out
}

// FinishMatch records a final score.
func FinishMatch(t testing.TB, db *gorm.DB, matchID, home, away int) {
	t.Helper()
	err := db.Model(&models.Match{}).Where("id = ?", matchID).Updates(map[string]interface{}{
		"status":     models.MatchFinished,
		"home_score": home,
		"away_score": away,
	}).Error
	if err != nil {
		t.Fatalf("finish match: %v", err)
	}
}

func SetMatchStatus(t testing.TB, db *gorm.DB, matchID int, status models.MatchStatus) {
	t.Helper()
	if err := db.Model(&models.Match{}).Where("id = ?", matchID).Update("status", status).Error; err != nil {
		t.Fatalf("set match status: %v", err)
	}
}
