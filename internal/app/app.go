package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iabetor/speakd/internal/config"
	"github.com/iabetor/speakd/internal/database"
	"github.com/iabetor/speakd/internal/httpapi"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/speech"
	"github.com/iabetor/speakd/internal/storage"
	"github.com/iabetor/speakd/internal/transcode"
	"github.com/iabetor/speakd/internal/tts"
)

// App 持有进程生命周期内的所有组件。
type App struct {
	cfg        *config.Config
	dir        *storage.Dir
	db         *database.DB
	engine     tts.Engine
	transcoder *transcode.Adapter
	service    *speech.Service
	handler    http.Handler
}

// New 按配置初始化输出目录、历史库、合成引擎和转码器。
// 转码能力在这里探测一次，之后不再变化。
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	a := &App{cfg: cfg}

	var err error
	a.dir, err = storage.Open(cfg.Storage.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("初始化输出目录失败: %w", err)
	}

	if path := cfg.HistoryDBPath(); path != "" {
		a.db, err = database.Open(path)
		if err != nil {
			return nil, fmt.Errorf("打开历史数据库失败: %w", err)
		}
		if err := a.db.Migrate(); err != nil {
			a.Close()
			return nil, fmt.Errorf("迁移历史数据库失败: %w", err)
		}
	} else {
		logger.Info("[app] 未配置 db_path，不记录生成历史")
	}

	a.engine, err = tts.New(cfg.TTS)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("初始化 TTS 引擎失败: %w", err)
	}
	logger.Infof("[app] TTS 引擎: %s", a.engine.Name())

	a.transcoder = transcode.Detect(ctx, transcode.Options{
		Enabled: cfg.TranscodeEnabled(),
		Backend: cfg.Transcode.Backend,
		Bitrate: cfg.Transcode.Bitrate,
		FFmpeg:  cfg.Transcode.FFmpeg,
		Lame:    cfg.Transcode.Lame,
	})

	svcCfg := speech.Config{
		Engine:     a.engine,
		Keywords:   tts.KeywordsFromConfig(cfg.TTS.Keywords),
		Dir:        a.dir,
		Transcoder: a.transcoder,
		Timeout:    time.Duration(cfg.Server.SynthesisTimeout) * time.Second,
	}
	routerCfg := httpapi.RouterConfig{
		Defaults:  speech.Defaults{Voice: cfg.TTS.DefaultVoice, Rate: cfg.TTS.DefaultRate},
		RateLimit: cfg.Server.RateLimit,
		RateBurst: cfg.Server.RateBurst,
	}
	if a.db != nil {
		svcCfg.Recorder = a.db
		routerCfg.History = a.db
	}
	a.service = speech.NewService(svcCfg)
	routerCfg.Service = a.service
	a.handler = httpapi.NewRouter(routerCfg)

	return a, nil
}

// Service 返回合成服务，供命令行直接调用。
func (a *App) Service() *speech.Service {
	return a.service
}

// Handler 返回 HTTP 处理器。
func (a *App) Handler() http.Handler {
	return a.handler
}

// RunJanitor 在 retention_hours > 0 时定期清理过期音频，阻塞直到 ctx 取消。
func (a *App) RunJanitor(ctx context.Context) {
	retention := time.Duration(a.cfg.Storage.RetentionHours) * time.Hour
	var pruner storage.Pruner
	if a.db != nil {
		pruner = a.db
	}
	storage.NewJanitor(a.dir, retention, pruner).Run(ctx)
}

// Close 释放引擎和数据库。
func (a *App) Close() {
	if c, ok := a.engine.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warnf("[app] 关闭 TTS 引擎失败: %v", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			logger.Warnf("[app] 关闭数据库失败: %v", err)
		}
	}
}
