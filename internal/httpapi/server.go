package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/MarkoPoloResearchLab/hostel/pkg/housing"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	claimsContextKey      = "auth_claims"
	defaultAdminRole      = "admin"
	defaultRequestTimeout = 10 * time.Second
	shutdownTimeout       = 5 * time.Second
	semesterListCount     = 4
)

// Engine is the part of housing.Service the HTTP surface drives.
type Engine interface {
	GetAvailability(ctx context.Context, bedID housing.BedID, period housing.DateRange) (bool, error)
	ListAvailableBeds(ctx context.Context, filter housing.BedFilter) ([]housing.BedListing, error)
	CreateBooking(ctx context.Context, request housing.BookingRequest) (housing.Booking, error)
	SetBookingStatus(ctx context.Context, bookingID housing.BookingID, target housing.BookingStatus) (housing.Booking, error)
	RecordPayment(ctx context.Context, bookingID housing.BookingID, amount housing.AmountCents, mode housing.PaymentMode) (housing.Payment, error)
	GetOccupancyReport(ctx context.Context, hostelID *housing.HostelID) (housing.OccupancyReport, error)
	GetRevenueReport(ctx context.Context, hostelID *housing.HostelID) (housing.RevenueReport, error)
	Summary(ctx context.Context) (housing.Summary, error)
	OccupancyByHostel(ctx context.Context) ([]housing.HostelOccupancy, error)
	ListBookings(ctx context.Context, filter housing.BookingFilter) ([]housing.BookingDetail, error)
	CurrentBooking(ctx context.Context, studentID housing.StudentID) (housing.BookingDetail, bool, error)
	StudentPayments(ctx context.Context, studentID housing.StudentID) ([]housing.PaymentDetail, error)
	UpcomingSemesters(count int) []string
}

// Config holds the HTTP surface settings.
type Config struct {
	ListenAddr     string
	AllowedOrigins []string
	RequestTimeout time.Duration
	AdminRole      string
}

// Server bundles the router with its dependencies.
type Server struct {
	cfg     Config
	handler *httpHandler
	router  *gin.Engine
	logger  *zap.Logger
}

// NewServer builds the router. authenticate must store *sessionvalidator.Claims under
// the "auth_claims" context key. cache may be nil; when set it must also be registered
// as an operation logger of the engine so writes clear cached reports.
func NewServer(cfg Config, engine Engine, authenticate gin.HandlerFunc, cache *GuardedReportCache, logger *zap.Logger) (*Server, error) {
	if engine == nil {
		return nil, errors.New("httpapi: engine is nil")
	}
	if authenticate == nil {
		return nil, errors.New("httpapi: authenticate middleware is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = NewGuardedReportCache(nil, logger)
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.AdminRole == "" {
		cfg.AdminRole = defaultAdminRole
	}
	handler := &httpHandler{engine: engine, cache: cache, logger: logger, cfg: cfg}
	return &Server{
		cfg:     cfg,
		handler: handler,
		router:  setupRouter(cfg, handler, authenticate, logger),
		logger:  logger,
	}, nil
}

// Handler exposes the router.
func (server *Server) Handler() http.Handler {
	return server.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (server *Server) Run(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              server.cfg.ListenAddr,
		Handler:           server.router,
		ReadHeaderTimeout: server.cfg.RequestTimeout,
	}
	errCh := make(chan error, 1)
	go func() {
		server.logger.Info("hostel api listening", zap.String("addr", server.cfg.ListenAddr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if shutdownErr := httpServer.Shutdown(shutdownCtx); shutdownErr != nil {
			server.logger.Warn("server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func setupRouter(cfg Config, handler *httpHandler, authenticate gin.HandlerFunc, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	if len(cfg.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     cfg.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(requestTimeout(cfg.RequestTimeout))
	api.Use(authenticate)

	api.GET("/semesters", handler.handleSemesters)
	api.GET("/beds/available", handler.handleAvailableBeds)
	api.GET("/beds/:id/availability", handler.handleAvailability)
	api.POST("/bookings", handler.handleCreateBooking)
	api.GET("/bookings", handler.requireAdmin, handler.handleListBookings)
	api.PATCH("/bookings/:id", handler.requireAdmin, handler.handleSetBookingStatus)
	api.POST("/payments", handler.handleRecordPayment)
	api.GET("/students/:id/booking", handler.handleCurrentBooking)
	api.GET("/students/:id/payments", handler.handleStudentPayments)
	api.GET("/reports/occupancy", handler.handleOccupancyReport)
	api.GET("/reports/revenue", handler.requireAdmin, handler.handleRevenueReport)
	api.GET("/reports/summary", handler.requireAdmin, handler.handleSummaryReport)
	api.GET("/reports/hostels", handler.requireAdmin, handler.handleHostelReport)

	return router
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		logger.Info("http request",
			zap.String("method", ctx.Request.Method),
			zap.String("path", ctx.FullPath()),
			zap.Int("status", ctx.Writer.Status()),
			zap.Duration("latency", time.Since(started)),
		)
	}
}

func requestTimeout(timeout time.Duration) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), timeout)
		defer cancel()
		ctx.Request = ctx.Request.WithContext(requestCtx)
		ctx.Next()
	}
}
