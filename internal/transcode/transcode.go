package transcode

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/storage"
)

// Capability 表示转码能力，在启动时确定一次。
type Capability int

const (
	Unavailable Capability = iota
	Available
)

func (c Capability) String() string {
	if c == Available {
		return "available"
	}
	return "unavailable"
}

// Backend 是具体的 WAV -> MP3 转码实现。
type Backend interface {
	// Name 返回后端名称，用于日志。
	Name() string
	// Probe 检查后端在当前主机上是否可用。
	Probe(ctx context.Context) error
	// Transcode 把 wavPath 转为 mp3Path。
	Transcode(ctx context.Context, wavPath, mp3Path string) error
}

// Adapter 封装转码后端与启动时探测得到的能力。
// Convert 从不返回错误：转码失败时退回原始 WAV。
type Adapter struct {
	capability Capability
	backend    Backend
}

// Options 转码配置。
type Options struct {
	Enabled bool
	Backend string // auto | ffmpeg | lame | none
	Bitrate string
	FFmpeg  string // ffmpeg 可执行文件，默认 ffmpeg
	Lame    string // lame 可执行文件，默认 lame
}

// Disabled 返回不做转码的 Adapter。
func Disabled() *Adapter {
	return &Adapter{capability: Unavailable}
}

// WithBackend 使用已知可用的后端创建 Adapter，不再探测。
func WithBackend(b Backend) *Adapter {
	return &Adapter{capability: Available, backend: b}
}

// Detect 按配置探测可用的转码后端，只应在启动时调用一次。
func Detect(ctx context.Context, opts Options) *Adapter {
	if !opts.Enabled {
		logger.Info("[transcode] MP3 转码已禁用")
		return Disabled()
	}

	var candidates []Backend
	switch strings.ToLower(opts.Backend) {
	case "", "auto":
		candidates = []Backend{NewFFmpeg(opts.FFmpeg, opts.Bitrate), NewLame(opts.Lame, opts.Bitrate)}
	case "ffmpeg":
		candidates = []Backend{NewFFmpeg(opts.FFmpeg, opts.Bitrate)}
	case "lame":
		candidates = []Backend{NewLame(opts.Lame, opts.Bitrate)}
	case "none":
		logger.Info("[transcode] 未配置转码后端")
		return Disabled()
	default:
		logger.Warnf("[transcode] 未知的转码后端 %q，不做转码", opts.Backend)
		return Disabled()
	}

	for _, b := range candidates {
		if err := b.Probe(ctx); err != nil {
			logger.Infof("[transcode] %s 不可用: %v", b.Name(), err)
			continue
		}
		logger.Infof("[transcode] 使用 %s 转码为 MP3", b.Name())
		return WithBackend(b)
	}

	logger.Warn("[transcode] 没有可用的 MP3 转码后端，将直接返回 WAV")
	return Disabled()
}

// Capability 返回启动时确定的转码能力。
func (a *Adapter) Capability() Capability {
	return a.capability
}

// BackendName 返回后端名称，无后端时为空。
func (a *Adapter) BackendName() string {
	if a.backend == nil {
		return ""
	}
	return a.backend.Name()
}

// Convert 尝试把 wavPath 转为同名 .mp3 文件。
// 成功返回 MP3 路径和 audio/mpeg；能力不可用或转码出错时返回原 WAV 路径和 audio/wav。
func (a *Adapter) Convert(ctx context.Context, wavPath string) (string, string) {
	if a.capability != Available || a.backend == nil {
		return wavPath, audio.MimeWAV
	}

	mp3Path := storage.Sibling(wavPath, ".mp3")
	if err := a.backend.Transcode(ctx, wavPath, mp3Path); err != nil {
		logger.Warnf("[transcode] %s 转码失败，返回 WAV: %v", a.backend.Name(), err)
		// 删除可能残留的半成品，避免目录中出现与 MIME 不符的文件
		if rmErr := os.Remove(mp3Path); rmErr != nil && !os.IsNotExist(rmErr) {
			logger.Debugf("[transcode] 删除残留文件失败: %v", rmErr)
		}
		return wavPath, audio.MimeWAV
	}
	return mp3Path, audio.MimeMP3
}

// checkOutput 确认后端确实写出了文件。
func checkOutput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("输出文件不存在: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("输出文件为空: %s", path)
	}
	return nil
}
