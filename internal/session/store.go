package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"paydash/internal/domain"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Storage key names. These are the only two pieces of client state the
// dashboard persists between runs, mirroring the hosted dashboard's
// localStorage layout.
const (
	KeyCurrentUser  = "paydash.user"
	KeySessionToken = "paydash.token"
)

// Store persists the current user record and session token, plus the local
// coin metadata cache.
type Store struct {
	db *gorm.DB
}

// NewStore opens (and migrates) the SQLite-backed session store at the
// platform config location.
func NewStore() (*Store, error) {
	dbPath, err := getDBPath()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve DB path: %w", err)
	}

	dbDir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dbDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create DB directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.AutoMigrate(&domain.UserRecord{}, &domain.SessionToken{}, &domain.CoinInfo{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &Store{db: db}, nil
}

// getDBPath resolves the database file path based on OS
func getDBPath() (string, error) {
	var configDir string
	var err error

	if runtime.GOOS == "windows" {
		configDir = os.Getenv("LOCALAPPDATA")
		if configDir == "" {
			configDir, err = os.UserConfigDir()
		}
	} else {
		configDir, err = os.UserConfigDir()
	}

	if err != nil {
		return "", err
	}

	return filepath.Join(configDir, "PayDash", "data", "paydash.db"), nil
}

// ======================================================================================
// Session Operations
// ======================================================================================

// SaveUser writes the current user record (login).
func (s *Store) SaveUser(user *domain.UserRecord) error {
	user.UpdatedAt = time.Now()
	return s.db.Save(user).Error
}

// CurrentUser reads the stored user record, nil when logged out.
func (s *Store) CurrentUser() (*domain.UserRecord, error) {
	var user domain.UserRecord
	err := s.db.First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &user, err
}

// SaveToken writes the session token value as handed out by the backend.
// The value is stored raw; ExtractToken runs on every read instead.
func (s *Store) SaveToken(value string) error {
	tok := domain.SessionToken{
		Key:       KeySessionToken,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return s.db.Save(&tok).Error
}

// Token reads the stored session token through token extraction. Returns ""
// when logged out or when the stored value is unusable.
func (s *Store) Token() (string, error) {
	var tok domain.SessionToken
	err := s.db.First(&tok, "key = ?", KeySessionToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return ExtractToken(tok.Value), nil
}

// Clear removes both storage keys. Called on logout and on a 401.
func (s *Store) Clear() error {
	if err := s.db.Where("1 = 1").Delete(&domain.UserRecord{}).Error; err != nil {
		return err
	}
	return s.db.Where("key = ?", KeySessionToken).Delete(&domain.SessionToken{}).Error
}

// ======================================================================================
// Coin Cache Operations
// ======================================================================================

// UpsertCoin creates or updates cached coin metadata.
func (s *Store) UpsertCoin(coin *domain.CoinInfo) error {
	return s.db.Save(coin).Error
}

// GetCoin retrieves cached coin metadata by symbol.
func (s *Store) GetCoin(symbol string) (*domain.CoinInfo, error) {
	var coin domain.CoinInfo
	err := s.db.First(&coin, "symbol = ?", symbol).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil // Not found is not an error
	}
	return &coin, err
}

// GetAllCoins retrieves the full cached coin list.
func (s *Store) GetAllCoins() ([]domain.CoinInfo, error) {
	var coins []domain.CoinInfo
	err := s.db.Find(&coins).Error
	return coins, err
}

// DeleteCoin removes a coin from the cache.
func (s *Store) DeleteCoin(symbol string) error {
	return s.db.Where("symbol = ?", symbol).Delete(&domain.CoinInfo{}).Error
}
