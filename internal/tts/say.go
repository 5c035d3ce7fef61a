package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// saySampleRate 是 say 输出 WAV 的采样率。
const saySampleRate = 22050

// sayVoiceLine 匹配 `say -v '?'` 的一行，如：
//
//	Eddy (English (US)) en_US    # Hello! My name is Eddy.
var sayVoiceLine = regexp.MustCompile(`^(.+?)\s+([a-z]{2,3}[_-][A-Za-z0-9]+)\s+#`)

// SayEngine 使用 macOS 内置 say 命令合成语音，是 macOS 上的系统默认引擎。
type SayEngine struct {
	binary string
	cache  voiceCache
}

// NewSayEngine 创建 macOS say TTS 引擎。
func NewSayEngine(binary string) *SayEngine {
	if binary == "" {
		binary = "say"
	}
	return &SayEngine{binary: binary}
}

// Name 返回引擎名称。
func (s *SayEngine) Name() string { return "say" }

// Voices 返回系统已安装的语音，语音名即 ID。
func (s *SayEngine) Voices(ctx context.Context) ([]Voice, error) {
	return s.cache.get(ctx, func(ctx context.Context) ([]Voice, error) {
		out, err := runCommand(ctx, nil, s.binary, "-v", "?")
		if err != nil {
			return nil, fmt.Errorf("[tts] say: 列出语音失败: %w", err)
		}
		voices := parseSayVoices(out)
		logger.Infof("[tts] say: 发现 %d 个语音", len(voices))
		return voices, nil
	})
}

// SynthesizeToFile 让 say 直接输出 16-bit LE 单声道 WAV，文本从 stdin 读取。
func (s *SayEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	args := []string{
		"-o", path,
		"--file-format=WAVE",
		"--data-format=LEI16@" + strconv.Itoa(saySampleRate),
		"-r", strconv.Itoa(EffectiveRate(opts.Rate)),
	}
	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}
	args = append(args, "-f", "-")

	logger.Debugf("[tts] say: 正在合成 %d 个字符，语音=%q", len([]rune(text)), opts.Voice)

	if _, err := runCommand(ctx, strings.NewReader(text), s.binary, args...); err != nil {
		return fmt.Errorf("[tts] say: %w", err)
	}
	if err := audio.CheckWAVFile(path); err != nil {
		return fmt.Errorf("[tts] say: %w", err)
	}
	return nil
}

func parseSayVoices(out []byte) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		m := sayVoiceLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		name := strings.TrimSpace(m[1])
		voices = append(voices, Voice{ID: name, Name: name})
	}
	return voices
}
