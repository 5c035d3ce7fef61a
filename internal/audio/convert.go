package audio

import (
	"encoding/binary"
	"math"
)

// Float32ToInt16 将 [-1.0, 1.0] 范围的 float32 样本转换为 PCM int16，超出范围的样本被钳位。
func Float32ToInt16(in []float32) []int16 {
	out := make([]int16, len(in))
	for i, s := range in {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		out[i] = int16(s * math.MaxInt16)
	}
	return out
}

// Int16ToBytes 将 int16 样本转换为小端字节切片。
func Int16ToBytes(in []int16) []byte {
	out := make([]byte, len(in)*2)
	for i, s := range in {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Float32ToBytes 将 float32 样本直接转换为 16-bit LE PCM 字节。
func Float32ToBytes(in []float32) []byte {
	return Int16ToBytes(Float32ToInt16(in))
}

// TrimFrames 截掉不完整的尾部帧，frameSize 为每帧字节数（如 16-bit 立体声为 4）。
func TrimFrames(pcm []byte, frameSize int) []byte {
	if frameSize <= 0 {
		return pcm
	}
	return pcm[:len(pcm)/frameSize*frameSize]
}
