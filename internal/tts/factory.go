package tts

import (
	"fmt"
	"runtime"

	"github.com/iabetor/speakd/internal/config"
)

// New 根据配置创建 TTS 引擎。
// engine 为 auto 时按操作系统选择系统语音引擎：macOS 用 say，其余用 espeak-ng。
func New(cfg config.TTSConfig) (Engine, error) {
	name := cfg.Engine
	if name == "" || name == "auto" {
		name = systemEngine(runtime.GOOS)
	}

	switch name {
	case "espeak":
		return NewEspeakEngine(cfg.Espeak.Binary, cfg.Espeak.Language), nil
	case "say":
		return NewSayEngine(cfg.Say.Binary), nil
	case "piper":
		voices := make([]PiperVoice, 0, len(cfg.Piper.Voices))
		for _, v := range cfg.Piper.Voices {
			voices = append(voices, PiperVoice{Name: v.Name, ModelPath: v.ModelPath})
		}
		return NewPiperEngine(cfg.Piper.Binary, cfg.Piper.ModelPath, voices)
	case "edge":
		return NewEdgeEngine(cfg.Edge.Voices), nil
	case "tencent":
		return NewTencentEngine(TencentConfig{
			SecretID:  cfg.Tencent.SecretID,
			SecretKey: cfg.Tencent.SecretKey,
			Region:    cfg.Tencent.Region,
		})
	case "sherpa":
		speakers := make([]SherpaSpeaker, 0, len(cfg.Sherpa.Speakers))
		for _, sp := range cfg.Sherpa.Speakers {
			speakers = append(speakers, SherpaSpeaker{Name: sp.Name, ID: sp.ID})
		}
		return NewSherpaEngine(SherpaConfig{
			Model:      cfg.Sherpa.Model,
			Tokens:     cfg.Sherpa.Tokens,
			Lexicon:    cfg.Sherpa.Lexicon,
			DataDir:    cfg.Sherpa.DataDir,
			NumThreads: cfg.Sherpa.NumThreads,
			Speakers:   speakers,
		})
	default:
		return nil, fmt.Errorf("[tts] 未知的 TTS 引擎: %s", cfg.Engine)
	}
}

func systemEngine(goos string) string {
	if goos == "darwin" {
		return "say"
	}
	return "espeak"
}

// KeywordsFromConfig 将配置中的关键词表转换为 Keywords。
func KeywordsFromConfig(cfg config.KeywordsConfig) Keywords {
	return Keywords{Female: cfg.Female, Male: cfg.Male}
}
