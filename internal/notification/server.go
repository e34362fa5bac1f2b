package notification

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/nao1215/duenotice/internal/config"
	"github.com/nao1215/duenotice/pkg/middleware"
)

// shutdownTimeout はシャットダウン時に処理中のリクエストを待つ時間。
const shutdownTimeout = 10 * time.Second

// Server は通知サービスのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// db はSQLiteデータベース接続。
	db *sql.DB
	// store は投資と日次通知のストア。
	store *Store
	// generator は日次通知のジェネレーター。
	generator *Generator
	// scheduler は毎日0時にgeneratorを実行する。
	scheduler *Scheduler
	// loc は判定と日時表示の基準タイムゾーン。
	loc *time.Location
	// jwtSecret はJWT署名用の秘密鍵。
	jwtSecret string
	// devMode が真の場合のみ開発用トークンを発行する。
	devMode bool
	// now は現在時刻を返す。テストで差し替える。
	now func() time.Time
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しい通知サーバーを生成する。
// SQLiteデータベースの接続とマイグレーションを行う。
func NewServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", cfg.DBPath)
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	s, err := newServer(ctx, sqlDB, cfg, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return s, nil
}

// newServer は接続済みのデータベースからサーバーを組み立てる。
func newServer(ctx context.Context, sqlDB *sql.DB, cfg *config.Config, logger *zap.Logger) (*Server, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := initSchema(ctx, sqlDB, logger); err != nil {
		return nil, fmt.Errorf("スキーマ初期化に失敗: %w", err)
	}

	router := gin.New()
	router.Use(middleware.Recovery(logger))
	router.Use(middleware.RequestLogger(logger.Named("http")))
	router.Use(middleware.CORS([]string{cfg.FrontendURL}))

	store := NewStore(sqlDB)
	generator := NewGenerator(store, cfg.Location, logger)
	s := &Server{
		router:    router,
		port:      cfg.Port,
		db:        sqlDB,
		store:     store,
		generator: generator,
		scheduler: NewScheduler(generator, cfg.Location, logger),
		loc:       cfg.Location,
		jwtSecret: cfg.JWTSecret,
		devMode:   cfg.DevMode,
		now:       time.Now,
		logger:    logger,
	}
	s.setupRoutes()
	return s, nil
}

// Store はサーバーが使うストアを返す。
func (s *Server) Store() *Store {
	return s.store
}

// Generator はサーバーが使う日次通知ジェネレーターを返す。
func (s *Server) Generator() *Generator {
	return s.generator
}

// Handler はHTTPハンドラーを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はスケジューラーとHTTPサーバーを起動し、ctx がキャンセルされるまで待つ。
func (s *Server) Run(ctx context.Context) error {
	if err := s.scheduler.Start(ctx); err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort("", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("notification server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	var runErr error
	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			runErr = fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
		}
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			runErr = fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
		}
	}

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := s.scheduler.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// Close はデータベース接続を閉じる。
func (s *Server) Close() error {
	return s.db.Close()
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	api := s.router.Group("/api")
	{
		notifications := api.Group("/notifications")
		notifications.Use(middleware.JWTAuth(s.jwtSecret))
		{
			notifications.GET("/today", s.handleToday())
			notifications.GET("/today/count", s.handleTodayCount())
		}

		if s.devMode {
			api.POST("/auth/dev-token", s.handleDevToken())
		}
	}

	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "notification"})
	})
}

// partyResponse は顧客・ブローカーのJSONレスポンス。
type partyResponse struct {
	Name string `json:"name"`
}

// notificationResponse は通知のJSONレスポンス。
// 金額は小数点以下2桁の数値、日時は基準タイムゾーンのRFC3339で返す。
type notificationResponse struct {
	ID                 string         `json:"_id"`
	InvestmentID       string         `json:"investmentId"`
	Customer           *partyResponse `json:"customer,omitempty"`
	Broker             *partyResponse `json:"broker,omitempty"`
	ExpireLabel        string         `json:"expireLabel"`
	ArrearsMonthsCount int            `json:"arrearsMonthsCount"`
	ArrearsAmount      json.Number    `json:"arrearsAmount"`
	MonthlyInterest    json.Number    `json:"monthlyInterest"`
	InvestmentName     string         `json:"investmentName"`
	StartDate          string         `json:"startDate"`
	DueDate            string         `json:"dueDate"`
}

func partyOf(name string) *partyResponse {
	if name == "" {
		return nil
	}
	return &partyResponse{Name: name}
}

func (s *Server) toNotificationResponse(n DailyNotification) notificationResponse {
	due := DueDate(n.StartDate, s.loc)
	if d, err := time.ParseInLocation(dayLayout, n.DueDate, s.loc); err == nil {
		due = d
	}
	return notificationResponse{
		ID:                 n.ID,
		InvestmentID:       n.InvestmentID,
		Customer:           partyOf(n.CustomerName),
		Broker:             partyOf(n.BrokerName),
		ExpireLabel:        n.ExpireLabel,
		ArrearsMonthsCount: n.ArrearsMonthsCount,
		ArrearsAmount:      json.Number(n.ArrearsAmount.StringFixed(2)),
		MonthlyInterest:    json.Number(n.MonthlyInterest.StringFixed(2)),
		InvestmentName:     n.InvestmentName,
		StartDate:          n.StartDate.In(s.loc).Format(time.RFC3339),
		DueDate:            due.Format(time.RFC3339),
	}
}

// handleToday は今日が期日の通知一覧を返す。
func (s *Server) handleToday() gin.HandlerFunc {
	return func(c *gin.Context) {
		list, err := s.store.ListDaily(c.Request.Context(), Today(s.now(), s.loc))
		if err != nil {
			s.logger.Error("list today notifications", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知の取得に失敗しました"})
			return
		}

		data := make([]notificationResponse, 0, len(list))
		for _, n := range list {
			data = append(data, s.toNotificationResponse(n))
		}
		c.JSON(http.StatusOK, gin.H{"data": data})
	}
}

// handleTodayCount は今日が期日の通知件数を返す。
func (s *Server) handleTodayCount() gin.HandlerFunc {
	return func(c *gin.Context) {
		n, err := s.store.CountDaily(c.Request.Context(), Today(s.now(), s.loc))
		if err != nil {
			s.logger.Error("count today notifications", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "通知件数の取得に失敗しました"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": n})
	}
}

// devTokenRequest は開発用トークン発行のリクエストボディ。
type devTokenRequest struct {
	// UserID はトークンに含めるユーザーID。省略時は dev-user。
	UserID string `json:"user_id"`
	// Email はトークンに含めるメールアドレス。
	Email string `json:"email"`
}

// handleDevToken は開発用のJWTを発行し、セッションCookieにも設定する。
func (s *Server) handleDevToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req devTokenRequest
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "リクエストが不正です: " + err.Error()})
				return
			}
		}
		if req.UserID == "" {
			req.UserID = "dev-user"
		}
		if req.Email == "" {
			req.Email = "dev@example.com"
		}

		token, err := middleware.GenerateJWT(s.jwtSecret, req.UserID, req.Email)
		if err != nil {
			s.logger.Error("generate dev token", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "トークンの発行に失敗しました"})
			return
		}

		middleware.SetTokenCookie(c, token, c.Request.TLS != nil)
		c.JSON(http.StatusOK, gin.H{"token": token})
	}
}
