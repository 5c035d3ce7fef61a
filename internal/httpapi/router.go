package httpapi

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/iabetor/speakd/internal/database"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/speech"
)

//go:embed web/index.html
var webFS embed.FS

var indexTmpl = template.Must(template.ParseFS(webFS, "web/index.html"))

// HistoryReader 读取最近的生成记录，database.DB 实现了该接口。
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]database.Record, error)
}

// RouterConfig 是 HTTP 层的依赖。
type RouterConfig struct {
	Service  *speech.Service
	History  HistoryReader // 可为 nil，此时 /api/history 返回 404
	Defaults speech.Defaults

	// RateLimit 是 POST /speak 每秒允许的请求数，0 表示不限流。
	RateLimit float64
	RateBurst int
}

// Router 注册所有 HTTP 路由。
type Router struct {
	svc      *speech.Service
	history  HistoryReader
	defaults speech.Defaults
	limiter  *rate.Limiter
	mux      *http.ServeMux
}

// NewRouter 创建带访问日志和 panic 恢复的 http.Handler。
func NewRouter(cfg RouterConfig) http.Handler {
	r := &Router{
		svc:      cfg.Service,
		history:  cfg.History,
		defaults: cfg.Defaults,
		mux:      http.NewServeMux(),
	}
	if cfg.RateLimit > 0 {
		r.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), max(1, cfg.RateBurst))
	}
	r.routes()
	return withAccessLog(withRecovery(r.mux))
}

func (r *Router) routes() {
	r.mux.HandleFunc("GET /{$}", r.handleIndex)
	r.mux.Handle("POST /speak", r.withRateLimit(http.HandlerFunc(r.handleSpeak)))

	r.mux.HandleFunc("GET /healthz", r.handleHealthz)
	r.mux.HandleFunc("GET /api/voices", r.handleListVoices)
	r.mux.HandleFunc("GET /api/history", r.handleHistory)
}

type indexData struct {
	Engine      string
	DefaultRate int
	Transcoder  string
}

func (r *Router) handleIndex(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	data := indexData{
		Engine:      r.svc.EngineName(),
		DefaultRate: r.defaults.Rate,
		Transcoder:  r.svc.Transcoder().Capability().String(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		logger.Warnf("[http] 渲染首页失败: %v", err)
	}
}

func (r *Router) handleHealthz(w http.ResponseWriter, req *http.Request) {
	tc := r.svc.Transcoder()
	writeJSON(w, http.StatusOK, map[string]string{
		"status":            "ok",
		"engine":            r.svc.EngineName(),
		"transcoder":        tc.Capability().String(),
		"transcode_backend": tc.BackendName(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
