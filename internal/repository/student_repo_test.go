package repository

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/campusops/devtrack/internal/models"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.StudentRecord{},
		&models.TagCounter{},
		&models.AuditSession{},
		&models.AuditMark{},
	))
	return db
}

func TestCreatePersistsInactiveFlag(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewStudentRepository(db)

	require.NoError(t, db.Create(&models.StudentRecord{
		StudentID: "S1", Name: "Ada Lovelace", IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.StudentRecord{
		StudentID: "S2", Name: "Left Lastyear", IsActive: false,
	}).Error)

	departed, err := repo.GetByID(ctx, "S2")
	require.NoError(t, err)
	require.False(t, departed.IsActive, "inactive flag must survive the insert")
}

func TestListActiveExcludesInactiveStudents(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewStudentRepository(db)

	require.NoError(t, db.Create(&models.StudentRecord{
		StudentID: "S1", Name: "Ada Lovelace", IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&models.StudentRecord{
		StudentID: "S2", Name: "Left Lastyear", IsActive: false,
	}).Error)

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	require.Equal(t, "S1", active[0].StudentID)
}
