package tts

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// EspeakEngine 使用 espeak-ng CLI 合成语音，是 Linux 上的系统默认引擎。
// 语音列表由变体（如 en+f3）和所配置语言的语言语音组成，变体在前，首次成功查询后缓存。
type EspeakEngine struct {
	binary   string
	language string
	cache    voiceCache
}

// NewEspeakEngine 创建 espeak-ng 引擎。language 用于组合变体语音，为空时取 "en"。
func NewEspeakEngine(binary, language string) *EspeakEngine {
	if binary == "" {
		binary = "espeak-ng"
	}
	if language == "" {
		language = "en"
	}
	return &EspeakEngine{binary: binary, language: language}
}

// Name 返回引擎名称。
func (e *EspeakEngine) Name() string { return "espeak" }

// Voices 返回 `--voices=variant` 与 `--voices` 的合并结果，只保留所配置语言的语言语音。
func (e *EspeakEngine) Voices(ctx context.Context) ([]Voice, error) {
	return e.cache.get(ctx, e.loadVoices)
}

func (e *EspeakEngine) loadVoices(ctx context.Context) ([]Voice, error) {
	out, err := runCommand(ctx, nil, e.binary, "--voices")
	if err != nil {
		return nil, fmt.Errorf("[tts] espeak: 列出语音失败: %w", err)
	}

	// 变体带有明确的性别，排在前面供 male/female 优先匹配；旧版 espeak 可能不支持
	var voices []Voice
	if variants, err := runCommand(ctx, nil, e.binary, "--voices=variant"); err == nil {
		voices = parseEspeakVoices(variants, e.language)
	} else {
		logger.Debugf("[tts] espeak: 列出变体失败: %v", err)
	}

	for _, v := range parseEspeakVoices(out, "") {
		if matchesLanguage(v.ID, e.language) {
			voices = append(voices, v)
		}
	}

	logger.Infof("[tts] espeak: 发现 %d 个语音（语言 %s）", len(voices), e.language)
	return voices, nil
}

// matchesLanguage 判断 espeak 语言代码是否属于 language，如 en 匹配 en、en-gb、en-us。
func matchesLanguage(code, language string) bool {
	code, language = strings.ToLower(code), strings.ToLower(language)
	return code == language || strings.HasPrefix(code, language+"-")
}

// SynthesizeToFile 调用 espeak-ng -w 写出 WAV 文件，文本通过 stdin 传入以免被当作参数解析。
func (e *EspeakEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	args := []string{"-w", path, "-s", strconv.Itoa(EffectiveRate(opts.Rate))}
	if opts.Voice != "" {
		args = append(args, "-v", opts.Voice)
	}

	logger.Debugf("[tts] espeak: 正在合成 %d 个字符，语音=%q", len([]rune(text)), opts.Voice)

	if _, err := runCommand(ctx, strings.NewReader(text), e.binary, args...); err != nil {
		return fmt.Errorf("[tts] espeak: %w", err)
	}
	if err := audio.CheckWAVFile(path); err != nil {
		return fmt.Errorf("[tts] espeak: %w", err)
	}
	return nil
}

// parseEspeakVoices 解析 `espeak-ng --voices` 的表格输出：
//
//	Pty Language       Age/Gender VoiceName          File                 Other Languages
//	 5  en-us           --/M      English_(America)  gmw/en-US            (en 3)
//
// variantLang 非空时表示解析的是变体列表，语音 ID 组合为 "<lang>+<variant>"。
// 显示名只附带 male/female 标签，不加其他后缀，以免误中性别关键词。
func parseEspeakVoices(out []byte, variantLang string) []Voice {
	var voices []Voice
	scanner := bufio.NewScanner(bytes.NewReader(out))
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 5 || fields[0] == "Pty" {
			continue
		}
		lang, ageGender, name, file := fields[1], fields[2], fields[3], fields[4]

		display := strings.ReplaceAll(name, "_", " ")
		id := lang
		if variantLang != "" {
			id = variantLang + "+" + path.Base(file)
		}
		switch {
		case strings.HasSuffix(ageGender, "/F"):
			display += " female"
		case strings.HasSuffix(ageGender, "/M"):
			display += " male"
		}
		voices = append(voices, Voice{ID: id, Name: display})
	}
	return voices
}
