package backend

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Olatundeawo/ordora/pkg/middleware"
)

// 既定値。
const (
	defaultAccessTTL   = 5 * time.Minute
	defaultRefreshTTL  = 24 * time.Hour
	defaultCheckoutURL = "https://checkout.ordora.dev/pay"
	shutdownTimeout    = 10 * time.Second
)

// Options は開発用バックエンドの設定。
type Options struct {
	// JWTSecret はアクセストークンの署名鍵。必須。
	JWTSecret string
	// AccessTTL はアクセストークンの有効期間。0の場合は5分。
	AccessTTL time.Duration
	// RefreshTTL はリフレッシュトークンの有効期間。0の場合は24時間。
	RefreshTTL time.Duration
	// AllowedOrigins はCORSで許可するオリジン。
	AllowedOrigins []string
	// WebhookSecret は決済webhookの verif-hash ヘッダーと照合する値。空の場合は照合しない。
	WebhookSecret string
	// CheckoutURL はQRコードが指す決済ページのベースURL。
	CheckoutURL string
	// Logger は構造化ロガー。nilの場合は出力しない。
	Logger *zap.Logger
	// Registry はメトリクスの登録先。nilの場合は新しいレジストリを作る。
	Registry *prometheus.Registry
	// Now は現在時刻を返す関数。nilの場合はtime.Now。
	Now func() time.Time
}

// Server は開発用バックエンドのHTTPサーバー。
type Server struct {
	// router はGinのHTTPルーター。
	router *gin.Engine
	// port はサーバーのリッスンポート。
	port string
	// state はメモリ上のデータ。
	state *state
	// opts は適用済みの設定。
	opts Options
	// logger は構造化ロガー。
	logger *zap.Logger
}

// NewServer は新しい開発用バックエンドを生成する。
func NewServer(port string, opts Options) (*Server, error) {
	if opts.JWTSecret == "" {
		return nil, errors.New("JWT署名鍵が設定されていません")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = defaultAccessTTL
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = defaultRefreshTTL
	}
	if opts.CheckoutURL == "" {
		opts.CheckoutURL = defaultCheckoutURL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(collectors.NewGoCollector())
	}

	router := gin.New()
	router.Use(middleware.Recovery(opts.Logger))
	router.Use(middleware.NewHTTPMetrics(opts.Registry).Handler())
	router.Use(middleware.CORS(opts.AllowedOrigins))

	s := &Server{
		router: router,
		port:   port,
		state:  newState(opts.Now),
		opts:   opts,
		logger: opts.Logger,
	}
	s.setupRoutes()

	return s, nil
}

// Handler はルーティング済みのhttp.Handlerを返す。
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run はHTTPサーバーを起動し、ctxがキャンセルされたらグレースフルに停止する。
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("[Backend] HTTPサーバーを起動します", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("HTTPサーバーの起動に失敗: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("[Backend] HTTPサーバーを停止します")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTPサーバーの停止に失敗: %w", err)
	}
	return nil
}

// setupRoutes はAPIルーティングを設定する。
func (s *Server) setupRoutes() {
	// 認証不要のエンドポイント
	auth := s.router.Group("/auth")
	{
		auth.POST("/register/", s.handleRegister())
		auth.POST("/login/", s.handleLogin())
		auth.POST("/token/refresh/", s.handleRefresh())
		auth.POST("/token/verify/", s.handleVerify())
	}
	s.router.GET("/goods/", s.handleListGoods())
	s.router.POST("/goods/payments/webhook/", s.handleWebhook())

	// 認証必須のエンドポイント
	gated := s.router.Group("/")
	gated.Use(middleware.JWTAuth(s.opts.JWTSecret))
	{
		gated.GET("/auth/user/:id/", s.handleGetUser())
		gated.POST("/auth/logout/", s.handleLogout())

		gated.GET("/goods/me/", s.handleMyGoods())
		gated.POST("/goods/create/", s.handleCreateProduct())
		gated.GET("/goods/:id/", s.handleGetProduct())
		gated.PUT("/goods/:id/update/", s.handleUpdateProduct())
		gated.DELETE("/goods/:id/delete/", s.handleDeleteProduct())

		gated.POST("/goods/create/order/", s.handleCreateOrder())
		gated.GET("/goods/customer/order/", s.handleCustomerOrders())
		gated.GET("/goods/customer/order/:id/", s.handleCustomerOrder())
		gated.GET("/goods/producer/order/", s.handleProducerOrders())
		gated.GET("/goods/producer/order/:id/", s.handleProducerOrder())

		gated.POST("/goods/payments/create-qr/:id/", s.handleCreateQRPayment())
		gated.GET("/goods/customers/payments/", s.handleCustomerPayments())
		gated.GET("/goods/payments/order/:id/", s.handlePaymentByOrder())
		gated.GET("/goods/payments/status/:reference/", s.handlePaymentStatus())
	}

	s.router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.opts.Registry, promhttp.HandlerOpts{})))

	// ヘルスチェック
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "ordora-backend"})
	})
}

// detail はDRF形式の単一メッセージエラーを返す。
func detail(c *gin.Context, status int, msg string) {
	c.AbortWithStatusJSON(status, gin.H{"detail": msg})
}

// fieldErrors はDRF形式のフィールドエラーを返す。
func fieldErrors(c *gin.Context, errs map[string][]string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errs)
}

// stateError は状態操作のエラーをHTTPレスポンスに変換する。
func (s *Server) stateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errNotFound):
		detail(c, http.StatusNotFound, "見つかりません。")
	case errors.Is(err, errForbidden):
		detail(c, http.StatusForbidden, "この操作を行う権限がありません。")
	default:
		s.logger.Error("[Backend] リクエストの処理に失敗しました",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		detail(c, http.StatusInternalServerError, "内部サーバーエラーが発生しました")
	}
}
