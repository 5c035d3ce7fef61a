package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/google/uuid"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common"
	"github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/common/profile"
	ttsapi "github.com/tencentcloud/tencentcloud-sdk-go/tencentcloud/tts/v20190823"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// tencentSampleRate 是请求腾讯云返回的 WAV 采样率。
const tencentSampleRate = 16000

// tencentDefaultVoice 默认音色：智瑜（女声）。
const tencentDefaultVoice int64 = 1001

// tencentVoices 是腾讯云基础音色目录，显示名中带性别标签以便关键词匹配。
var tencentVoices = []struct {
	Type int64
	Name string
}{
	{1001, "Zhiyu 智瑜 female"},
	{1002, "Zhiling 智聆 female"},
	{1003, "Zhimei 智美 female"},
	{1004, "Zhiyun 智云 male"},
	{1005, "Zhili 智莉 female"},
	{1008, "Zhiqi 智琪 female"},
	{1010, "Zhihua 智华 male"},
	{1017, "Zhirong 智蓉 female"},
	{1018, "Zhijing 智靖 male"},
	{101050, "WeJack English male"},
	{101051, "WeRose English female"},
}

// tencentSpeeds 是腾讯云 Speed 参数与实际倍速的对应关系。
var tencentSpeeds = []struct {
	Level float64
	Ratio float64
}{
	{-2, 0.6},
	{-1, 0.8},
	{0, 1.0},
	{1, 1.2},
	{2, 1.5},
	{6, 2.5},
}

// TencentConfig 腾讯云 TTS 配置。
type TencentConfig struct {
	SecretID  string
	SecretKey string
	Region    string
}

// TencentEngine 使用腾讯云 TTS 合成语音，直接请求 wav 编码。
type TencentEngine struct {
	client *ttsapi.Client
}

// NewTencentEngine 创建腾讯云 TTS 引擎。
func NewTencentEngine(cfg TencentConfig) (*TencentEngine, error) {
	if cfg.SecretID == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("[tts] 腾讯云 TTS 需要 SecretID 和 SecretKey")
	}
	if cfg.Region == "" {
		cfg.Region = "ap-guangzhou"
	}

	credential := common.NewCredential(cfg.SecretID, cfg.SecretKey)
	cpf := profile.NewClientProfile()
	cpf.HttpProfile.Endpoint = "tts.tencentcloudapi.com"

	client, err := ttsapi.NewClient(credential, cfg.Region, cpf)
	if err != nil {
		return nil, fmt.Errorf("[tts] 创建腾讯云 TTS 客户端失败: %w", err)
	}

	logger.Infof("[tts] 腾讯云 TTS 引擎已初始化 (region=%s)", cfg.Region)

	return &TencentEngine{client: client}, nil
}

// Name 返回引擎名称。
func (e *TencentEngine) Name() string { return "tencent" }

// Voices 返回内置音色目录，ID 为 VoiceType 数字。
func (e *TencentEngine) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(tencentVoices))
	for _, v := range tencentVoices {
		voices = append(voices, Voice{ID: strconv.FormatInt(v.Type, 10), Name: v.Name})
	}
	return voices, nil
}

// SynthesizeToFile 调用 TextToVoice 并把返回的音频写入 path。
// 返回数据不是 WAV 时按 16kHz 单声道 PCM 补上 WAV 头。
func (e *TencentEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	voiceType := tencentDefaultVoice
	if opts.Voice != "" {
		v, err := strconv.ParseInt(opts.Voice, 10, 64)
		if err != nil {
			return fmt.Errorf("[tts] 腾讯云 TTS: 无效的音色 %q", opts.Voice)
		}
		voiceType = v
	}
	speed := tencentSpeed(opts.Rate)

	logger.Debugf("[tts] 腾讯云 TTS: 正在合成 %d 个字符，音色=%d，语速=%.0f", len([]rune(text)), voiceType, speed)

	request := ttsapi.NewTextToVoiceRequest()
	request.Text = common.StringPtr(text)
	request.SessionId = common.StringPtr(uuid.NewString())
	request.VoiceType = common.Int64Ptr(voiceType)
	request.Codec = common.StringPtr("wav")
	request.SampleRate = common.Uint64Ptr(tencentSampleRate)
	request.Speed = common.Float64Ptr(speed)
	request.Volume = common.Float64Ptr(5.0)

	response, err := e.client.TextToVoiceWithContext(ctx, request)
	if err != nil {
		return fmt.Errorf("[tts] 腾讯云 TTS 合成失败: %w", err)
	}
	if response.Response == nil || response.Response.Audio == nil {
		return fmt.Errorf("[tts] 腾讯云 TTS: 未返回音频数据")
	}

	data, err := base64.StdEncoding.DecodeString(*response.Response.Audio)
	if err != nil {
		return fmt.Errorf("[tts] Base64 解码失败: %w", err)
	}

	logger.Debugf("[tts] 腾讯云 TTS: 收到 %d 字节音频", len(data))

	return writeTencentAudio(path, data)
}

func writeTencentAudio(path string, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("[tts] 腾讯云 TTS: 音频数据为空")
	}
	if audio.SniffMime(data) != audio.MimeWAV {
		return audio.WriteWAVFile(path, data, audio.Mono16(tencentSampleRate))
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("[tts] 腾讯云 TTS: 写入文件失败: %w", err)
	}
	return nil
}

// tencentSpeed 将每分钟词数映射到最接近的腾讯云 Speed 档位。
func tencentSpeed(rate int) float64 {
	ratio := float64(EffectiveRate(rate)) / DefaultRate
	best := tencentSpeeds[0]
	for _, s := range tencentSpeeds[1:] {
		if math.Abs(s.Ratio-ratio) < math.Abs(best.Ratio-ratio) {
			best = s
		}
	}
	return best.Level
}
