package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// HTTP posts chunks to a diarizing speech service.
//
// The service accepts a multipart form with a "file" part and answers
// {"text": "...", "segments": [{"speaker": "...", "text": "...", "is_question": bool}]}.
type HTTP struct {
	baseURL string
	c       *http.Client
}

// NewHTTP returns a client for the service at baseURL.
func NewHTTP(baseURL string, timeout time.Duration) *HTTP {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HTTP{
		baseURL: strings.TrimRight(baseURL, "/"),
		c:       &http.Client{Timeout: timeout},
	}
}

func (h *HTTP) Transcribe(ctx context.Context, req Request) (Result, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", fmt.Sprintf("chunk-%06d.wav", req.Seq))
	if err != nil {
		return Result{}, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(req.Audio); err != nil {
		return Result{}, fmt.Errorf("write form file: %w", err)
	}
	_ = mw.WriteField("session_id", req.SessionID)
	_ = mw.WriteField("seq", strconv.Itoa(req.Seq))
	_ = mw.WriteField("audio_ref", string(req.Ref))
	if err := mw.Close(); err != nil {
		return Result{}, fmt.Errorf("close multipart body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+"/transcribe", &body)
	if err != nil {
		return Result{}, fmt.Errorf("build transcribe request: %w", err)
	}
	httpReq.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := h.c.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("transcribe request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return Result{}, fmt.Errorf("read transcribe response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Result{}, fmt.Errorf("transcribe %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out Result
	if err := json.Unmarshal(raw, &out); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if strings.TrimSpace(out.Transcript) == "" && len(out.Segments) > 0 {
		texts := make([]string, 0, len(out.Segments))
		for _, seg := range out.Segments {
			texts = append(texts, seg.Text)
		}
		out.Transcript = strings.Join(texts, " ")
	}
	if len(out.Segments) == 0 {
		out.Segments = nil
	}
	return out, nil
}

// Health probes GET {base}/health.
func (h *HTTP) Health(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := h.c.Do(req)
	if err != nil {
		return fmt.Errorf("health request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("health %s", resp.Status)
	}
	return nil
}
