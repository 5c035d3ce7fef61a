package transcode

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// FFmpeg 使用 ffmpeg + libmp3lame 转码。
type FFmpeg struct {
	binary  string
	bitrate string
}

// NewFFmpeg 创建 ffmpeg 后端。bitrate 形如 "128k"。
func NewFFmpeg(binary, bitrate string) *FFmpeg {
	if binary == "" {
		binary = "ffmpeg"
	}
	if bitrate == "" {
		bitrate = "128k"
	}
	return &FFmpeg{binary: binary, bitrate: bitrate}
}

// Name 返回后端名称。
func (f *FFmpeg) Name() string { return "ffmpeg" }

// Probe 检查 ffmpeg 是否存在且编译了 libmp3lame 编码器。
func (f *FFmpeg) Probe(ctx context.Context) error {
	path, err := exec.LookPath(f.binary)
	if err != nil {
		return err
	}
	out, err := run(ctx, path, "-hide_banner", "-encoders")
	if err != nil {
		return err
	}
	if !strings.Contains(string(out), "libmp3lame") {
		return fmt.Errorf("ffmpeg 未包含 libmp3lame 编码器")
	}
	f.binary = path
	return nil
}

// Transcode 执行 ffmpeg -i in.wav -codec:a libmp3lame out.mp3。
func (f *FFmpeg) Transcode(ctx context.Context, wavPath, mp3Path string) error {
	_, err := run(ctx, f.binary,
		"-hide_banner", "-loglevel", "error", "-nostdin", "-y",
		"-i", wavPath,
		"-codec:a", "libmp3lame",
		"-b:a", f.bitrate,
		mp3Path,
	)
	if err != nil {
		return err
	}
	return checkOutput(mp3Path)
}

// run 执行命令并返回 stdout，失败时附带 stderr。
func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s 执行失败: %w, stderr: %s", name, err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
