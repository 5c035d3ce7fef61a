package tts

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
	"github.com/pp-group/edge-tts-go/biz/service/tts/edge"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/logger"
)

// edgeDefaultVoice 是 Edge TTS 服务自身的默认语音。
const edgeDefaultVoice = "en-US-AriaNeural"

// EdgeEngine 使用微软 Edge TTS 合成语音，
// 通过 edge-tts-go 获取 MP3 音频，再用 go-mp3 解码为 PCM 写成 WAV。
type EdgeEngine struct {
	voices []string
}

// NewEdgeEngine 创建 Edge TTS 引擎，voices 为可选的语音名列表（如 en-US-JennyNeural）。
func NewEdgeEngine(voices []string) *EdgeEngine {
	return &EdgeEngine{voices: voices}
}

// Name 返回引擎名称。
func (e *EdgeEngine) Name() string { return "edge" }

// Voices 返回配置的语音目录，语音名本身带有 Jenny、Guy 等可匹配的关键词。
func (e *EdgeEngine) Voices(ctx context.Context) ([]Voice, error) {
	voices := make([]Voice, 0, len(e.voices))
	for _, v := range e.voices {
		voices = append(voices, Voice{ID: v, Name: v})
	}
	return voices, nil
}

// SynthesizeToFile 合成 MP3 并解码为 16-bit 立体声 WAV。
// edge-tts-go 的流式接口不提供语速参数，Rate 被忽略。
func (e *EdgeEngine) SynthesizeToFile(ctx context.Context, text string, opts Options, path string) error {
	logger.Debugf("[tts] edge-tts: 正在合成 %d 个字符，语音=%q", len([]rune(text)), opts.Voice)
	if opts.Rate != 0 && opts.Rate != DefaultRate {
		logger.Debugf("[tts] edge-tts: 不支持语速 %d，使用默认语速", opts.Rate)
	}

	mp3Data, err := e.fetchMP3(ctx, text, opts.Voice)
	if err != nil {
		return err
	}

	logger.Debugf("[tts] edge-tts: 收到 %d 字节 MP3 数据", len(mp3Data))

	pcm, sampleRate, err := decodeMP3(mp3Data)
	if err != nil {
		return fmt.Errorf("[tts] edge-tts: %w", err)
	}

	if err := audio.WriteWAVFile(path, pcm, audio.Stereo16(sampleRate)); err != nil {
		return fmt.Errorf("[tts] edge-tts: %w", err)
	}
	return nil
}

func (e *EdgeEngine) fetchMP3(ctx context.Context, text, voice string) ([]byte, error) {
	if voice == "" {
		voice = edgeDefaultVoice
	}

	comm, err := edge.NewCommunicate(text, edge.WithVoice(voice))
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 创建实例失败: %w", err)
	}

	ch, err := comm.Stream()
	if err != nil {
		return nil, fmt.Errorf("[tts] edge-tts 开始流式合成失败: %w", err)
	}

	var mp3Buf bytes.Buffer
	for {
		select {
		case <-ctx.Done():
			// 排空剩余消息，让 Stream 的 goroutine 能退出
			go func() {
				for range ch {
				}
			}()
			return nil, ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				if mp3Buf.Len() == 0 {
					return nil, fmt.Errorf("[tts] edge-tts: 未收到音频数据")
				}
				return mp3Buf.Bytes(), nil
			}
			// type=="audio" 的条目包含音频数据
			if msgType, ok := msg["type"].(string); ok && msgType == "audio" {
				if data, ok := msg["data"].([]byte); ok {
					mp3Buf.Write(data)
				}
			}
		}
	}
}

// decodeMP3 将 MP3 解码为 16-bit LE 立体声 PCM，go-mp3 的输出总是双声道。
func decodeMP3(data []byte) ([]byte, int, error) {
	decoder, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return nil, 0, fmt.Errorf("MP3 解码失败: %w", err)
	}

	pcm, err := io.ReadAll(decoder)
	if err != nil {
		return nil, 0, fmt.Errorf("读取 PCM 数据失败: %w", err)
	}
	if len(pcm) == 0 {
		return nil, 0, fmt.Errorf("MP3 解码结果为空")
	}
	return audio.TrimFrames(pcm, 4), decoder.SampleRate(), nil
}
