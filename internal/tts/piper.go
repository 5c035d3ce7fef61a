package tts

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// PiperVoice 是一个 piper 模型，Name 参与关键词匹配。
type PiperVoice struct {
	Name      string
	ModelPath string
}

// PiperEngine 使用 piper CLI 子进程合成语音。
// piper 的语音由模型文件决定，每个配置的模型就是一个语音。
type PiperEngine struct {
	binary       string
	defaultModel string
	voices       []PiperVoice
}

// NewPiperEngine 创建 Piper TTS 引擎。defaultModel 为空时使用 voices 中的第一个模型。
func NewPiperEngine(binary, defaultModel string, voices []PiperVoice) (*PiperEngine, error) {
	if binary == "" {
		binary = "piper"
	}
	if defaultModel == "" && len(voices) > 0 {
		defaultModel = voices[0].ModelPath
	}
	if defaultModel == "" {
		return nil, fmt.Errorf("[tts] piper 需要 model_path 或至少一个 voices 模型")
	}
	return &PiperEngine{binary: binary, defaultModel: defaultModel, voices: voices}, nil
}

// Name 返回引擎名称。
func (p *PiperEngine) Name() string { return "piper" }

// Voices 返回配置的模型列表，ID 为模型路径。
func (p *PiperEngine) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(p.voices))
	for _, v := range p.voices {
		name := v.Name
		if name == "" {
			name = v.ModelPath
		}
		voices = append(voices, Voice{ID: v.ModelPath, Name: name})
	}
	return voices, nil
}

// SynthesizeToFile 通过 stdin 传入文本，由 piper 写出 WAV 文件。
// 语速通过 length_scale 控制：200 wpm 对应 1.0，数值越大语速越慢。
func (p *PiperEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	model := opts.Voice
	if model == "" {
		model = p.defaultModel
	}

	args := []string{
		"--model", model,
		"--output_file", path,
		"--length_scale", strconv.FormatFloat(piperLengthScale(opts.Rate), 'f', 3, 64),
	}

	logger.Debugf("[tts] piper: 正在合成 %d 个字符，模型=%s", len([]rune(text)), model)

	if _, err := runCommand(ctx, strings.NewReader(text), p.binary, args...); err != nil {
		return fmt.Errorf("[tts] piper: %w", err)
	}
	if err := audio.CheckWAVFile(path); err != nil {
		return fmt.Errorf("[tts] piper: %w", err)
	}
	return nil
}

func piperLengthScale(rate int) float64 {
	return float64(DefaultRate) / float64(EffectiveRate(rate))
}
