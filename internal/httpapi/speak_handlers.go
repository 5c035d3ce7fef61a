package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"

	"github.com/iabetor/speakd/internal/database"
	"github.com/iabetor/speakd/internal/logger"
	"github.com/iabetor/speakd/internal/speech"
)

const (
	maxFormMemory = 1 << 20

	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

// handleSpeak 合成语音并以附件形式返回音频文件。
func (r *Router) handleSpeak(w http.ResponseWriter, req *http.Request) {
	if err := req.ParseMultipartForm(maxFormMemory); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		http.Error(w, "Invalid form data.", http.StatusBadRequest)
		return
	}

	sreq, err := speech.ParseRequest(req.PostForm, r.defaults)
	switch {
	case errors.Is(err, speech.ErrEmptyText):
		http.Error(w, "No text provided.", http.StatusBadRequest)
		return
	case errors.Is(err, speech.ErrInvalidRate):
		http.Error(w, "Invalid rate.", http.StatusBadRequest)
		return
	case err != nil:
		http.Error(w, "Invalid request.", http.StatusBadRequest)
		return
	}

	art, err := r.svc.Speak(req.Context(), sreq)
	if err != nil {
		logger.Errorf("[http] 合成失败: %v", err)
		captureError(req, err, "speech synthesis failed")
		http.Error(w, "Speech synthesis failed.", http.StatusInternalServerError)
		return
	}

	f, err := os.Open(art.Path)
	if err != nil {
		logger.Errorf("[http] 打开音频文件失败: %v", err)
		http.Error(w, "Speech synthesis failed.", http.StatusInternalServerError)
		return
	}
	defer f.Close()

	logger.Infof("[http] 生成 %s (%s, %d 字节)", art.Filename(), art.MimeType, art.Size)

	w.Header().Set("Content-Type", art.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", art.Filename()))
	http.ServeContent(w, req, art.Filename(), art.CreatedAt, f)
}

func (r *Router) handleListVoices(w http.ResponseWriter, req *http.Request) {
	voices, err := r.svc.Voices(req.Context())
	if err != nil {
		logger.Warnf("[http] 获取语音列表失败: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list voices"})
		return
	}
	writeJSON(w, http.StatusOK, voices)
}

func (r *Router) handleHistory(w http.ResponseWriter, req *http.Request) {
	if r.history == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "history disabled"})
		return
	}

	limit := defaultHistoryLimit
	if s := req.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid limit"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	records, err := r.history.Recent(req.Context(), limit)
	if err != nil {
		logger.Errorf("[http] 查询历史记录失败: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load history"})
		return
	}
	if records == nil {
		records = []database.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}
