package transcode

import (
	"context"
	"os/exec"
	"strings"
)

// Lame 使用 lame 命令行编码器转码，适合没有 ffmpeg 的精简主机。
type Lame struct {
	binary  string
	bitrate string
}

// NewLame 创建 lame 后端。bitrate 接受 "128k" 或 "128"。
func NewLame(binary, bitrate string) *Lame {
	if binary == "" {
		binary = "lame"
	}
	return &Lame{binary: binary, bitrate: lameBitrate(bitrate)}
}

// Name 返回后端名称。
func (l *Lame) Name() string { return "lame" }

// Probe 检查 lame 是否可执行。
func (l *Lame) Probe(ctx context.Context) error {
	path, err := exec.LookPath(l.binary)
	if err != nil {
		return err
	}
	if _, err := run(ctx, path, "--version"); err != nil {
		return err
	}
	l.binary = path
	return nil
}

// Transcode 执行 lame --quiet -b <kbps> in.wav out.mp3。
func (l *Lame) Transcode(ctx context.Context, wavPath, mp3Path string) error {
	if _, err := run(ctx, l.binary, "--quiet", "-b", l.bitrate, wavPath, mp3Path); err != nil {
		return err
	}
	return checkOutput(mp3Path)
}

// lameBitrate 把 "128k" 转为 lame 的 kbps 数字参数。
func lameBitrate(bitrate string) string {
	b := strings.TrimSuffix(strings.ToLower(strings.TrimSpace(bitrate)), "k")
	if b == "" {
		return "128"
	}
	return b
}
