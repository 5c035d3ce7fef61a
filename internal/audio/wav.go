package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// wavHeaderSize 是标准 PCM WAV 文件头的长度。
const wavHeaderSize = 44

// Format 描述 PCM 音频格式。
type Format struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// Mono16 返回指定采样率的 16-bit 单声道格式。
func Mono16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 1, BitsPerSample: 16}
}

// Stereo16 返回指定采样率的 16-bit 立体声格式。
func Stereo16(sampleRate int) Format {
	return Format{SampleRate: sampleRate, Channels: 2, BitsPerSample: 16}
}

func (f Format) blockAlign() int {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) validate() error {
	if f.SampleRate <= 0 || f.Channels <= 0 || f.BitsPerSample <= 0 || f.BitsPerSample%8 != 0 {
		return fmt.Errorf("[audio] 无效的 PCM 格式: %+v", f)
	}
	return nil
}

// ErrNotWAV 表示数据不是可识别的 PCM WAV。
var ErrNotWAV = errors.New("[audio] 不是有效的 WAV 数据")

// WriteWAV 将原始 PCM 数据加上 44 字节 RIFF 头写入 w。
func WriteWAV(w io.Writer, pcm []byte, f Format) error {
	if err := f.validate(); err != nil {
		return err
	}
	pcm = TrimFrames(pcm, f.blockAlign())

	var hdr [wavHeaderSize]byte
	copy(hdr[0:4], "RIFF")
	binary.LittleEndian.PutUint32(hdr[4:8], uint32(36+len(pcm)))
	copy(hdr[8:12], "WAVE")
	copy(hdr[12:16], "fmt ")
	binary.LittleEndian.PutUint32(hdr[16:20], 16)
	binary.LittleEndian.PutUint16(hdr[20:22], 1) // PCM
	binary.LittleEndian.PutUint16(hdr[22:24], uint16(f.Channels))
	binary.LittleEndian.PutUint32(hdr[24:28], uint32(f.SampleRate))
	binary.LittleEndian.PutUint32(hdr[28:32], uint32(f.SampleRate*f.blockAlign()))
	binary.LittleEndian.PutUint16(hdr[32:34], uint16(f.blockAlign()))
	binary.LittleEndian.PutUint16(hdr[34:36], uint16(f.BitsPerSample))
	copy(hdr[36:40], "data")
	binary.LittleEndian.PutUint32(hdr[40:44], uint32(len(pcm)))

	if _, err := w.Write(hdr[:]); err != nil {
		return fmt.Errorf("[audio] 写入 WAV 头失败: %w", err)
	}
	if _, err := w.Write(pcm); err != nil {
		return fmt.Errorf("[audio] 写入 PCM 数据失败: %w", err)
	}
	return nil
}

// WriteWAVFile 将 PCM 数据写成 WAV 文件。
// 先写入临时文件再重命名，避免调用方读到写了一半的文件。
func WriteWAVFile(path string, pcm []byte, f Format) error {
	var buf bytes.Buffer
	buf.Grow(wavHeaderSize + len(pcm))
	if err := WriteWAV(&buf, pcm, f); err != nil {
		return err
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		return fmt.Errorf("[audio] 写入 WAV 文件失败: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("[audio] 重命名 WAV 文件失败: %w", err)
	}
	return nil
}

// ReadWAVHeader 解析 WAV 文件头，返回格式和 data 块长度。
// 会跳过 LIST 等非 fmt/data 块，兼容 say、espeak-ng 等工具的输出。
func ReadWAVHeader(r io.Reader) (Format, uint32, error) {
	var riff [12]byte
	if _, err := io.ReadFull(r, riff[:]); err != nil {
		return Format{}, 0, ErrNotWAV
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return Format{}, 0, ErrNotWAV
	}

	var f Format
	haveFmt := false
	for {
		var chunk [8]byte
		if _, err := io.ReadFull(r, chunk[:]); err != nil {
			return Format{}, 0, ErrNotWAV
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			if size < 16 {
				return Format{}, 0, ErrNotWAV
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(r, body); err != nil {
				return Format{}, 0, ErrNotWAV
			}
			f.Channels = int(binary.LittleEndian.Uint16(body[2:4]))
			f.SampleRate = int(binary.LittleEndian.Uint32(body[4:8]))
			f.BitsPerSample = int(binary.LittleEndian.Uint16(body[14:16]))
			haveFmt = true
		case "data":
			if !haveFmt {
				return Format{}, 0, ErrNotWAV
			}
			return f, size, nil
		default:
			// 块长度为奇数时有 1 字节填充
			skip := int64(size) + int64(size&1)
			if _, err := io.CopyN(io.Discard, r, skip); err != nil {
				return Format{}, 0, ErrNotWAV
			}
		}
	}
}

// CheckWAVFile 校验文件是可解析且带音频数据的 WAV。
// 部分工具写出流式 WAV 时 data 长度为 0 或 0xFFFFFFFF，此时以文件大小判断。
func CheckWAVFile(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("[audio] 打开 WAV 文件失败: %w", err)
	}
	defer fh.Close()

	_, size, err := ReadWAVHeader(fh)
	if err != nil {
		return fmt.Errorf("%w: %s", err, path)
	}
	if size > 0 && size != 0xFFFFFFFF {
		return nil
	}

	info, err := fh.Stat()
	if err != nil {
		return fmt.Errorf("[audio] 读取 WAV 文件信息失败: %w", err)
	}
	if info.Size() <= wavHeaderSize {
		return fmt.Errorf("[audio] WAV 文件没有音频数据: %s", path)
	}
	return nil
}
