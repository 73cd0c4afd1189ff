package download

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"eldersvr-cli/internal/util"
)

// AssetRecord is one downloaded asset as stored in the ledger database.
type AssetRecord struct {
	ID           uint      `gorm:"primarykey"`
	Filename     string    `gorm:"uniqueIndex;not null"`
	Category     string    `gorm:"not null"`
	URL          string    `gorm:"not null"`
	LocalPath    string    `gorm:"not null"`
	Hash         string    `gorm:"not null"`
	Size         int64     `gorm:"not null"`
	DownloadedAt time.Time `gorm:"not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Ledger records what was downloaded, with content hashes, so verify can
// detect corrupted or replaced files without refetching.
type Ledger struct {
	db *gorm.DB
}

// OpenLedger opens (or creates) the ledger database.
func OpenLedger(dbPath string) (*Ledger, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create ledger directory: %v", err)
	}
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&AssetRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %v", err)
	}

	return &Ledger{db: db}, nil
}

// Reset clears all ledger records.
func (l *Ledger) Reset() error {
	util.Default.Printf("🗑️  Resetting download ledger...\n")

	result := l.db.Unscoped().Delete(&AssetRecord{}, "1 = 1")
	if result.Error != nil {
		return fmt.Errorf("failed to reset ledger: %v", result.Error)
	}

	util.Default.Printf("✅ Ledger reset complete: %d records deleted\n", result.RowsAffected)
	return nil
}

// HashFile calculates the xxHash of a file for fast comparison.
func HashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := xxhash.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", hash.Sum(nil)), nil
}

// RecordDownload upserts the ledger entry for a finished task.
func (l *Ledger) RecordDownload(task Task) error {
	info, err := os.Stat(task.LocalPath)
	if err != nil {
		return err
	}
	hash, err := HashFile(task.LocalPath)
	if err != nil {
		return err
	}

	record := AssetRecord{
		Filename:     task.Filename,
		Category:     string(task.Category),
		URL:          task.URL,
		LocalPath:    task.LocalPath,
		Hash:         hash,
		Size:         info.Size(),
		DownloadedAt: time.Now(),
	}

	result := l.db.Where("filename = ?", task.Filename).Assign(record).FirstOrCreate(&record)
	return result.Error
}

// Lookup returns the record for a filename, or nil when it was never
// downloaded through the engine.
func (l *Ledger) Lookup(filename string) (*AssetRecord, error) {
	var records []AssetRecord
	silentDB := l.db.Session(&gorm.Session{Logger: l.db.Logger.LogMode(0)})
	if err := silentDB.Where("filename = ?", filename).Find(&records).Error; err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// All returns every ledger record ordered by filename.
func (l *Ledger) All() ([]AssetRecord, error) {
	var records []AssetRecord
	if err := l.db.Order("filename").Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

// VerifyFile reports whether the file on disk still matches its ledger hash.
// Returns false with no error when the file was never recorded.
func (l *Ledger) VerifyFile(filename, filePath string) (bool, error) {
	record, err := l.Lookup(filename)
	if err != nil {
		return false, err
	}
	if record == nil {
		return false, nil
	}
	hash, err := HashFile(filePath)
	if err != nil {
		return false, err
	}
	return hash == record.Hash, nil
}

// Stats returns the number of recorded assets and their combined size.
func (l *Ledger) Stats() (totalFiles int64, totalSize int64, err error) {
	var count int64
	err = l.db.Model(&AssetRecord{}).Count(&count).Error
	if err != nil {
		return 0, 0, err
	}

	var size int64
	err = l.db.Model(&AssetRecord{}).Select("COALESCE(SUM(size), 0)").Scan(&size).Error
	if err != nil {
		return count, 0, err
	}

	return count, size, nil
}

// Close closes the database connection.
func (l *Ledger) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
