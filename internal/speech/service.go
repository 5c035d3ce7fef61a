package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
	"unicode/utf8"

	"github.com/iabetor/speakd/internal/database"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/storage"
	"github.com/iabetor/speakd/internal/transcode"
	"github.com/iabetor/speakd/internal/tts"
)

// Artifact 是一次请求生成的音频文件，交给响应阶段后保留在磁盘上。
type Artifact struct {
	ID        string
	Path      string
	MimeType  string
	Engine    string
	Voice     string // 实际使用的引擎语音 ID，空表示引擎默认语音
	Rate      int
	Size      int64
	CreatedAt time.Time
}

// Filename 返回下载时使用的文件名。
func (a Artifact) Filename() string {
	return filepath.Base(a.Path)
}

// Recorder 记录生成历史，database.DB 实现了该接口。
type Recorder interface {
	Insert(ctx context.Context, r database.Record) error
}

// Config 是 Service 的依赖。
type Config struct {
	Engine     tts.Engine
	Keywords   tts.Keywords
	Dir        *storage.Dir
	Transcoder *transcode.Adapter
	Recorder   Recorder      // 可为 nil
	Timeout    time.Duration // 单次合成+转码超时，0 表示不限制
}

// Service 串联语音选择、合成与转码。
// 除输出目录外不持有可变共享状态，可被多个请求并发调用。
type Service struct {
	engine     tts.Engine
	keywords   tts.Keywords
	dir        *storage.Dir
	transcoder *transcode.Adapter
	recorder   Recorder
	timeout    time.Duration
}

// NewService 创建 Service，Transcoder 为 nil 时不做转码。
func NewService(cfg Config) *Service {
	tc := cfg.Transcoder
	if tc == nil {
		tc = transcode.Disabled()
	}
	return &Service{
		engine:     cfg.Engine,
		keywords:   cfg.Keywords,
		dir:        cfg.Dir,
		transcoder: tc,
		recorder:   cfg.Recorder,
		timeout:    cfg.Timeout,
	}
}

// EngineName 返回合成引擎名称。
func (s *Service) EngineName() string {
	return s.engine.Name()
}

// Transcoder 返回转码适配器。
func (s *Service) Transcoder() *transcode.Adapter {
	return s.transcoder
}

// VoiceInfo 是带性别分类的语音。
type VoiceInfo struct {
	tts.Voice
	Gender tts.Gender `json:"gender"`
}

// Voices 列出引擎语音并按关键词标注性别。
func (s *Service) Voices(ctx context.Context) ([]VoiceInfo, error) {
	voices, err := s.engine.Voices(ctx)
	if err != nil {
		return nil, fmt.Errorf("[speech] 获取语音列表失败: %w", err)
	}
	infos := make([]VoiceInfo, 0, len(voices))
	for _, v := range voices {
		infos = append(infos, VoiceInfo{Voice: v, Gender: tts.Classify(v.Name, s.keywords)})
	}
	return infos, nil
}

// Speak 合成 req 并返回生成的音频文件。
// 转码失败不会返回错误，此时返回 WAV 文件。
func (s *Service) Speak(ctx context.Context, req Request) (Artifact, error) {
	if req.Text == "" {
		return Artifact{}, ErrEmptyText
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	voice := s.selectVoice(ctx, req.Voice)
	id, wavPath := s.dir.NewFile(".wav")

	// 历史记录保存引擎实际使用的语速
	rate := tts.EffectiveRate(req.Rate)
	start := time.Now()
	opts := tts.Options{Voice: voice, Rate: rate}
	if err := s.engine.SynthesizeToFile(ctx, req.Text, opts, wavPath); err != nil {
		_ = os.Remove(wavPath)
		return Artifact{}, fmt.Errorf("[speech] %s 合成失败: %w", s.engine.Name(), err)
	}
	logger.Debugf("[speech] %s 合成完成 voice=%q rate=%d 耗时 %v", s.engine.Name(), voice, rate, time.Since(start))

	path, mime := s.transcoder.Convert(ctx, wavPath)

	info, err := os.Stat(path)
	if err != nil {
		return Artifact{}, fmt.Errorf("[speech] 读取输出文件失败: %w", err)
	}

	art := Artifact{
		ID:        id,
		Path:      path,
		MimeType:  mime,
		Engine:    s.engine.Name(),
		Voice:     voice,
		Rate:      rate,
		Size:      info.Size(),
		CreatedAt: time.Now(),
	}
	s.record(ctx, art, req)
	return art, nil
}

// selectVoice 按偏好选择语音 ID，空字符串表示引擎默认语音。
// 获取语音列表失败时退回默认语音，不影响合成。
func (s *Service) selectVoice(ctx context.Context, pref tts.Gender) string {
	if pref == tts.GenderUnspecified {
		return ""
	}
	voices, err := s.engine.Voices(ctx)
	if err != nil {
		logger.Warnf("[speech] 获取语音列表失败，使用默认语音: %v", err)
		return ""
	}
	v, ok := tts.PickVoice(voices, pref, s.keywords)
	if !ok {
		logger.Debugf("[speech] 没有匹配 %s 的语音，使用默认语音", pref)
		return ""
	}
	return v.ID
}

// record 尽力写入历史记录，失败只记日志。
func (s *Service) record(ctx context.Context, art Artifact, req Request) {
	if s.recorder == nil {
		return
	}
	err := s.recorder.Insert(context.WithoutCancel(ctx), database.Record{
		ID:        art.ID,
		Path:      art.Path,
		MimeType:  art.MimeType,
		Engine:    art.Engine,
		Voice:     art.Voice,
		Rate:      art.Rate,
		TextChars: utf8.RuneCountInString(req.Text),
		Size:      art.Size,
		CreatedAt: art.CreatedAt,
	})
	if err != nil {
		logger.Warnf("[speech] 写入历史记录失败: %v", err)
	}
}
