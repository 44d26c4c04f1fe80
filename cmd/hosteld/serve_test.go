package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/internal/config"
	"github.com/MarkoPoloResearchLab/hostel/internal/events"
	"github.com/MarkoPoloResearchLab/hostel/internal/httpapi"
	"github.com/MarkoPoloResearchLab/hostel/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/hostel/internal/sweeper"
	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

type mapReportCache struct {
	mu      sync.Mutex
	entries map[string][]byte
}

func (cache *mapReportCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	body, ok := cache.entries[key]
	return body, ok, nil
}

func (cache *mapReportCache) Set(_ context.Context, key string, body []byte) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries[key] = body
	return nil
}

func (cache *mapReportCache) Invalidate(context.Context) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.entries = map[string][]byte{}
	return nil
}

func (cache *mapReportCache) size() int {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	return len(cache.entries)
}

// seedCampus writes one hostel with a single bed and one student into the database at path.
func seedCampus(test *testing.T, path string) (housing.BedID, housing.StudentID) {
	test.Helper()
	db, err := gorm.Open(sqlite.Open(path+sqlitePragmas), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	require.NoError(test, err)
	sqlDB, err := db.DB()
	require.NoError(test, err)
	defer func() { _ = sqlDB.Close() }()

	hostel := gormstore.Hostel{Name: "Aravali", Type: "Boys", GenderAllowed: "Male"}
	require.NoError(test, db.Create(&hostel).Error)
	room := gormstore.Room{HostelID: hostel.HostelID, RoomNumber: "A-101", RoomType: "Single", Capacity: 1, PricePerMonthCents: 12000}
	require.NoError(test, db.Create(&room).Error)
	bed := gormstore.Bed{RoomID: room.RoomID, BedNumber: "01", Status: housing.BedStatusAvailable.String()}
	require.NoError(test, db.Create(&bed).Error)
	student := gormstore.Student{Name: "Resident", Email: "resident@campus.test", Department: "CSE", Year: 2, Gender: "Male"}
	require.NoError(test, db.Create(&student).Error)

	bedID, err := housing.NewBedID(bed.BedID)
	require.NoError(test, err)
	studentID, err := housing.NewStudentID(student.StudentID)
	require.NoError(test, err)
	return bedID, studentID
}

func TestSweeperCompletionClearsCachedReports(test *testing.T) {
	ctx := context.Background()
	path := filepath.Join(test.TempDir(), "hostel.db")
	cfg := config.Config{DatabaseURL: "sqlite://" + path}
	require.NoError(test, cfg.Validate())
	database, err := openDatabase(ctx, cfg, zap.NewNop())
	require.NoError(test, err)
	test.Cleanup(database.close)
	bedID, studentID := seedCampus(test, path)

	var now atomic.Int64
	now.Store(time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC).Unix())
	backend := &mapReportCache{entries: map[string][]byte{}}
	reports := httpapi.NewGuardedReportCache(backend, zap.NewNop())
	service, err := newService(database.store, now.Load, reports, events.NewZapLogger(zap.NewNop()))
	require.NoError(test, err)

	period, err := housing.ParseDateRange("2025-01-10", "2025-03-31")
	require.NoError(test, err)
	booking, err := service.CreateBooking(ctx, housing.BookingRequest{StudentID: studentID, BedID: bedID, Period: period})
	require.NoError(test, err)
	amount, err := housing.NewAmountCents(12000)
	require.NoError(test, err)
	mode, err := housing.NewPaymentMode("Online")
	require.NoError(test, err)
	_, err = service.RecordPayment(ctx, booking.ID, amount, mode)
	require.NoError(test, err)

	authenticate := func(ctx *gin.Context) {
		ctx.Set(claimsContextKey, &sessionvalidator.Claims{UserID: "warden", UserRoles: []string{"admin"}})
		ctx.Next()
	}
	server, err := httpapi.NewServer(httpapi.Config{}, service, authenticate, reports, zap.NewNop())
	require.NoError(test, err)
	occupiedBeds := func() float64 {
		recorder := httptest.NewRecorder()
		server.Handler().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/reports/occupancy", nil))
		require.Equal(test, http.StatusOK, recorder.Code)
		body := map[string]any{}
		require.NoError(test, json.Unmarshal(recorder.Body.Bytes(), &body))
		return body["occupied_beds"].(float64)
	}

	require.EqualValues(test, 1, occupiedBeds())
	require.Equal(test, 1, backend.size())

	now.Store(time.Date(2025, time.April, 5, 12, 0, 0, 0, time.UTC).Unix())
	bookingSweeper, err := sweeper.New(service, 10, zap.NewNop())
	require.NoError(test, err)
	completed, err := bookingSweeper.RunOnce(ctx)
	require.NoError(test, err)
	require.Equal(test, 1, completed)

	require.Zero(test, backend.size())
	require.EqualValues(test, 0, occupiedBeds())
}
