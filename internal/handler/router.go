package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/userman/internal/metrics"
	"github.com/hitoshi/userman/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// HealthChecker はヘルスチェックに必要なインターフェース。
// *sql.DBがそのまま満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	HealthChecker     HealthChecker
	CORSAllowedOrigin string

	// ユーザー
	UserService UserServiceInterface

	// メトリクス
	Metrics     prometheus.Gatherer
	HTTPMetrics middleware.HTTPMetricsRecorder
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Metrics
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	if deps.HTTPMetrics != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPMetrics))
	}

	userHandler := NewUserHandler(deps.UserService)

	// ヘルスチェック
	r.Get("/health", newHealthHandler(deps.HealthChecker))

	// Prometheusスクレイプ
	if deps.Metrics != nil {
		r.Handle("/metrics", metrics.Handler(deps.Metrics))
	}

	// ユーザー管理
	r.Route("/api/users", func(r chi.Router) {
		r.Get("/", userHandler.List)
		r.Post("/", userHandler.Create)

		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", userHandler.Show)
			r.Put("/", userHandler.Update)
			r.Patch("/", userHandler.Update)
			r.Delete("/", userHandler.Delete)
		})
	})

	return r
}

// newHealthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
func newHealthHandler(checker HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if checker != nil {
			if err := checker.PingContext(r.Context()); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, messageResponse{Message: "unhealthy"})
				return
			}
		}
		writeJSON(w, http.StatusOK, messageResponse{Message: "ok"})
	}
}
