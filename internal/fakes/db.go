package fakes

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// NewDB opens an sqlite database and creates the DevKit configuration and
// secret tables under the given names.
func NewDB(t *testing.T, dsn string, tables devkit.StoreTables) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.Table(tables.Configurations).AutoMigrate(&devkit.ConfigurationRecord{}); err != nil {
		t.Fatalf("automigrate configurations: %v", err)
	}
	if err := db.Table(tables.Secrets).AutoMigrate(&devkit.SecretRecord{}); err != nil {
		t.Fatalf("automigrate secrets: %v", err)
	}
	return db
}
