package speech

import (
	"errors"
	"net/url"
	"strconv"
	"strings"

	"github.com/iabetor/speakd/internal/tts"
)

var (
	// ErrEmptyText 表示去除空白后文本为空。
	ErrEmptyText = errors.New("[speech] 文本为空")
	// ErrInvalidRate 表示 rate 字段不是整数。
	ErrInvalidRate = errors.New("[speech] 语速不是整数")
)

// Request 是一次合成请求，响应结束后即丢弃。
type Request struct {
	Text  string
	Voice tts.Gender
	Rate  int
}

// Defaults 是请求缺省字段时使用的值。
type Defaults struct {
	Voice string
	Rate  int
}

// ParseRequest 从表单字段构造 Request。
//
// voice、rate 缺省或为空时分别使用 d.Voice、d.Rate；
// voice 不是 male/female 时视为未指定，使用引擎默认语音。
// rate 只校验是否为整数，非正数在合成时按 tts.DefaultRate 处理。
func ParseRequest(form url.Values, d Defaults) (Request, error) {
	text := strings.TrimSpace(form.Get("text"))
	if text == "" {
		return Request{}, ErrEmptyText
	}

	voice := d.Voice
	if v := strings.TrimSpace(form.Get("voice")); v != "" {
		voice = v
	}

	rate := tts.EffectiveRate(d.Rate)
	if raw := strings.TrimSpace(form.Get("rate")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return Request{}, ErrInvalidRate
		}
		rate = n
	}

	return Request{
		Text:  text,
		Voice: tts.ParsePreference(voice),
		Rate:  rate,
	}, nil
}
