package tts

import (
	"context"
	"sync"
)

// Engine 定义语音合成后端接口。
type Engine interface {
	// Name 返回引擎名称，用于日志和历史记录。
	Name() string

	// Voices 列出引擎可用的语音，顺序即匹配优先级。
	Voices(ctx context.Context) ([]Voice, error)

	// SynthesizeToFile 将文本合成为 WAV 文件写到 path。
	// 返回时文件已完整写入磁盘。
	SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error
}

// Options 是单次合成参数。
type Options struct {
	// Voice 是引擎语音 ID，为空使用引擎默认语音。
	Voice string
	// Rate 是语速（每分钟词数）。
	Rate int
}

// DefaultRate 是未指定语速时使用的每分钟词数。
const DefaultRate = 200

// EffectiveRate 返回引擎实际使用的语速，非正数视为默认值。
func EffectiveRate(rate int) int {
	if rate <= 0 {
		return DefaultRate
	}
	return rate
}

// voiceCache 缓存成功获取的语音列表；失败不缓存，下次请求会重试。
type voiceCache struct {
	mu     sync.Mutex
	voices []Voice
	loaded bool
}

func (c *voiceCache) get(ctx context.Context, load func(context.Context) ([]Voice, error)) ([]Voice, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.loaded {
		return c.voices, nil
	}
	voices, err := load(ctx)
	if err != nil {
		return nil, err
	}
	c.voices, c.loaded = voices, true
	return voices, nil
}
