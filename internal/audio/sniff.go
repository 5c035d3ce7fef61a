package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// 服务返回的两种音频 MIME 类型。
const (
	MimeWAV = "audio/wav"
	MimeMP3 = "audio/mpeg"
)

// SniffMime 根据文件头魔数识别音频类型，无法识别时返回空字符串。
// filetype 只识别少数几种 MP3 帧头，其余 layer III 帧头由 isMPEGFrameSync 补充。
func SniffMime(header []byte) string {
	kind, err := filetype.Match(header)
	if err == nil {
		switch kind.Extension {
		case "wav":
			return MimeWAV
		case "mp3":
			return MimeMP3
		}
		if kind != filetype.Unknown {
			return ""
		}
	}
	if len(header) >= 2 && isMPEGFrameSync(header[0], header[1]) {
		return MimeMP3
	}
	return ""
}

// isMPEGFrameSync 判断是否为 MPEG audio layer III 帧同步字。
func isMPEGFrameSync(b0, b1 byte) bool {
	if b0 != 0xFF || b1&0xE0 != 0xE0 {
		return false
	}
	layer := (b1 >> 1) & 0x03
	version := (b1 >> 3) & 0x03
	return layer == 0x01 && version != 0x01
}

// SniffFile 读取文件头并识别音频类型。
func SniffFile(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("[audio] 打开文件失败: %w", err)
	}
	defer fh.Close()

	header := make([]byte, 12)
	n, err := io.ReadFull(fh, header)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", fmt.Errorf("[audio] 读取文件头失败: %w", err)
	}
	return SniffMime(header[:n]), nil
}
