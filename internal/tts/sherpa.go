package tts

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	sherpa "github.com/k2-fsa/sherpa-onnx-go/sherpa_onnx"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// SherpaConfig sherpa-onnx 离线 VITS 模型配置。
type SherpaConfig struct {
	Model      string
	Tokens     string
	Lexicon    string
	DataDir    string
	NumThreads int
	Speakers   []SherpaSpeaker
}

// SherpaSpeaker 多说话人模型中的一个说话人，Name 参与关键词匹配。
type SherpaSpeaker struct {
	Name string
	ID   int
}

// SherpaEngine 封装 sherpa-onnx 离线 TTS，在进程内完成合成，不依赖外部命令。
type SherpaEngine struct {
	mu       sync.Mutex
	tts      *sherpa.OfflineTts
	speakers []SherpaSpeaker
}

// NewSherpaEngine 加载 VITS 模型。模型加载较慢，应只在启动时调用一次。
func NewSherpaEngine(cfg SherpaConfig) (*SherpaEngine, error) {
	if cfg.Model == "" || cfg.Tokens == "" {
		return nil, fmt.Errorf("[tts] sherpa 需要 model 和 tokens")
	}

	config := sherpa.OfflineTtsConfig{}
	config.Model.Vits.Model = cfg.Model
	config.Model.Vits.Tokens = cfg.Tokens
	config.Model.Vits.Lexicon = cfg.Lexicon
	config.Model.Vits.DataDir = cfg.DataDir
	config.Model.Vits.NoiseScale = 0.667
	config.Model.Vits.NoiseScaleW = 0.8
	config.Model.Vits.LengthScale = 1.0
	config.Model.NumThreads = cfg.NumThreads
	config.Model.Provider = "cpu"
	config.MaxNumSentences = 1

	t := sherpa.NewOfflineTts(&config)
	if t == nil {
		return nil, fmt.Errorf("[tts] 创建 sherpa 离线 TTS 失败，模型: %s", cfg.Model)
	}

	logger.Infof("[tts] sherpa 离线 TTS 已加载 (model=%s, speakers=%d)", cfg.Model, len(cfg.Speakers))

	return &SherpaEngine{tts: t, speakers: cfg.Speakers}, nil
}

// Name 返回引擎名称。
func (s *SherpaEngine) Name() string { return "sherpa" }

// Voices 返回配置的说话人，ID 为说话人编号。
func (s *SherpaEngine) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(s.speakers))
	for _, sp := range s.speakers {
		voices = append(voices, Voice{ID: strconv.Itoa(sp.ID), Name: sp.Name})
	}
	return voices, nil
}

// SynthesizeToFile 生成 float32 样本并写为 16-bit 单声道 WAV。
// 语速按 rate/200 换算为 speed 倍数。
func (s *SherpaEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	sid := 0
	if opts.Voice != "" {
		id, err := strconv.Atoi(opts.Voice)
		if err != nil {
			return fmt.Errorf("[tts] sherpa: 无效的说话人 %q", opts.Voice)
		}
		sid = id
	}
	speed := float32(EffectiveRate(opts.Rate)) / DefaultRate

	logger.Debugf("[tts] sherpa: 正在合成 %d 个字符，说话人=%d，speed=%.2f", len([]rune(text)), sid, speed)

	s.mu.Lock()
	if s.tts == nil {
		s.mu.Unlock()
		return fmt.Errorf("[tts] sherpa: 引擎已关闭")
	}
	generated := s.tts.Generate(text, sid, speed)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if generated == nil || len(generated.Samples) == 0 {
		return fmt.Errorf("[tts] sherpa: 未生成音频数据")
	}

	pcm := audio.Float32ToBytes(generated.Samples)
	if err := audio.WriteWAVFile(path, pcm, audio.Mono16(generated.SampleRate)); err != nil {
		return fmt.Errorf("[tts] sherpa: %w", err)
	}
	return nil
}

// Close 释放底层 sherpa-onnx 资源。
func (s *SherpaEngine) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tts != nil {
		sherpa.DeleteOfflineTts(s.tts)
		s.tts = nil
	}
	return nil
}
