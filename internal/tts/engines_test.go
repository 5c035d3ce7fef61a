package tts

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/iabetor/speakd/internal/audio"
	"github.com/iabetor/speakd/internal/config"
)

const sayVoicesOutput = `Alex                en_US    # Most people recognize me by my voice.
Daniel              en_GB    # Hello, my name is Daniel. I am a British-English voice.
Eddy (English (US)) en_US    # Hello! My name is Eddy.
Samantha            en_US    # Hello, my name is Samantha. I am an American-English voice.
not a voice line
`

func TestParseSayVoices(t *testing.T) {
	voices := parseSayVoices([]byte(sayVoicesOutput))
	if len(voices) != 4 {
		t.Fatalf("expected 4 voices, got %d: %+v", len(voices), voices)
	}
	if voices[2].ID != "Eddy (English (US))" {
		t.Errorf("voice names with spaces should be kept, got %q", voices[2].ID)
	}
	if voices[0].ID != voices[0].Name {
		t.Errorf("say voice id should equal its name: %+v", voices[0])
	}
}

func TestPiperLengthScale(t *testing.T) {
	cases := map[int]float64{
		200: 1.0,
		0:   1.0,
		-5:  1.0,
		100: 2.0,
		400: 0.5,
	}
	for rate, want := range cases {
		if got := piperLengthScale(rate); math.Abs(got-want) > 1e-9 {
			t.Errorf("piperLengthScale(%d) = %f, want %f", rate, got, want)
		}
	}
}

func TestNewPiperEngine_RequiresModel(t *testing.T) {
	if _, err := NewPiperEngine("", "", nil); err == nil {
		t.Fatal("expected error without model")
	}
	p, err := NewPiperEngine("", "", []PiperVoice{{Name: "amy female", ModelPath: "/m/amy.onnx"}})
	if err != nil {
		t.Fatalf("NewPiperEngine failed: %v", err)
	}
	if p.defaultModel != "/m/amy.onnx" {
		t.Errorf("first voice should become the default model, got %q", p.defaultModel)
	}
	voices, _ := p.Voices(context.Background())
	if len(voices) != 1 || voices[0].ID != "/m/amy.onnx" || voices[0].Name != "amy female" {
		t.Errorf("unexpected voices: %+v", voices)
	}
}

func TestTencentSpeed(t *testing.T) {
	cases := map[int]float64{
		200: 0,
		0:   0,
		160: -1,
		120: -2,
		50:  -2,
		240: 1,
		300: 2,
		500: 6,
	}
	for rate, want := range cases {
		if got := tencentSpeed(rate); got != want {
			t.Errorf("tencentSpeed(%d) = %v, want %v", rate, got, want)
		}
	}
}

func TestTencentVoices_MatchKeywords(t *testing.T) {
	e := &TencentEngine{}
	voices, err := e.Voices(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	female, ok := PickVoice(voices, GenderFemale, testKeywords)
	if !ok || female.ID != "1001" {
		t.Errorf("expected 1001 for female, got %+v", female)
	}
	male, ok := PickVoice(voices, GenderMale, testKeywords)
	if !ok || male.ID != "1004" {
		t.Errorf("expected 1004 for male, got %+v", male)
	}
}

func TestWriteTencentAudio(t *testing.T) {
	dir := t.TempDir()

	// raw PCM gets a WAV header
	rawPath := filepath.Join(dir, "raw.wav")
	if err := writeTencentAudio(rawPath, audio.Int16ToBytes([]int16{1, 2, 3, 4})); err != nil {
		t.Fatalf("writeTencentAudio(raw) failed: %v", err)
	}
	if mime, _ := audio.SniffFile(rawPath); mime != audio.MimeWAV {
		t.Errorf("expected WAV header to be added, sniffed %q", mime)
	}

	// WAV passes through untouched
	wavPath := filepath.Join(dir, "src.wav")
	if err := audio.WriteWAVFile(wavPath, []byte{1, 0, 2, 0}, audio.Mono16(16000)); err != nil {
		t.Fatal(err)
	}
	wav, _ := os.ReadFile(wavPath)
	outPath := filepath.Join(dir, "out.wav")
	if err := writeTencentAudio(outPath, wav); err != nil {
		t.Fatalf("writeTencentAudio(wav) failed: %v", err)
	}
	got, _ := os.ReadFile(outPath)
	if string(got) != string(wav) {
		t.Error("WAV data should be written as-is")
	}

	if err := writeTencentAudio(filepath.Join(dir, "empty.wav"), nil); err == nil {
		t.Error("expected error for empty audio")
	}
}

func TestNewTencentEngine_RequiresCredentials(t *testing.T) {
	if _, err := NewTencentEngine(TencentConfig{}); err == nil {
		t.Fatal("expected error without credentials")
	}
}

func TestEdgeEngine_Voices(t *testing.T) {
	e := NewEdgeEngine([]string{"en-US-GuyNeural", "en-US-JennyNeural"})
	voices, _ := e.Voices(context.Background())

	female, ok := PickVoice(voices, GenderFemale, testKeywords)
	if !ok || female.ID != "en-US-JennyNeural" {
		t.Errorf("expected Jenny for female, got %+v", female)
	}
	male, ok := PickVoice(voices, GenderMale, testKeywords)
	if !ok || male.ID != "en-US-GuyNeural" {
		t.Errorf("expected Guy for male, got %+v", male)
	}
}

func TestDecodeMP3_Garbage(t *testing.T) {
	if _, _, err := decodeMP3([]byte("definitely not mp3")); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestNew_Engines(t *testing.T) {
	cfg := config.Default().TTS

	cases := map[string]string{
		"espeak": "espeak",
		"say":    "say",
		"edge":   "edge",
	}
	for engine, want := range cases {
		cfg.Engine = engine
		e, err := New(cfg)
		if err != nil {
			t.Fatalf("New(%s) failed: %v", engine, err)
		}
		if e.Name() != want {
			t.Errorf("New(%s).Name() = %q", engine, e.Name())
		}
	}

	cfg.Engine = "auto"
	e, err := New(cfg)
	if err != nil {
		t.Fatalf("New(auto) failed: %v", err)
	}
	if e.Name() != "espeak" && e.Name() != "say" {
		t.Errorf("auto should pick a system engine, got %q", e.Name())
	}
}

func TestNew_Errors(t *testing.T) {
	cfg := config.Default().TTS
	for _, engine := range []string{"nope", "piper", "tencent", "sherpa"} {
		cfg.Engine = engine
		if _, err := New(cfg); err == nil {
			t.Errorf("New(%s) should fail with default config", engine)
		}
	}
}

func TestSystemEngine(t *testing.T) {
	if systemEngine("darwin") != "say" {
		t.Error("darwin should use say")
	}
	if systemEngine("linux") != "espeak" {
		t.Error("linux should use espeak")
	}
}
