package runner

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"
)

// JSONHandler implements IOHandler over JSON Lines: one Result object per
// command on the way out, one command per line on the way in.
type JSONHandler struct {
	Reader  *bufio.Reader
	Writer  io.Writer
	Encoder *json.Encoder

	mu sync.Mutex
}

// NewJSONHandler creates a handler for JSON IO.
func NewJSONHandler(r io.Reader, w io.Writer) *JSONHandler {
	if r == nil {
		r = os.Stdin
	}
	if w == nil {
		w = os.Stdout
	}
	return &JSONHandler{
		Reader:  bufio.NewReader(r),
		Writer:  w,
		Encoder: json.NewEncoder(w),
	}
}

func (h *JSONHandler) Output(ctx context.Context, res Result) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.Encoder.Encode(res)
}

// Input accepts a JSON string ("add Box"), an object ({"command":"add Box"})
// or a raw line. Blocking reads do not observe ctx.
func (h *JSONHandler) Input(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	text, err := h.Reader.ReadString('\n')
	if err != nil && (err != io.EOF || strings.TrimSpace(text) == "") {
		return "", err
	}
	text = strings.TrimSpace(text)

	var val string
	if err := json.Unmarshal([]byte(text), &val); err == nil {
		return SanitizeLine(val)
	}
	var obj struct {
		Command string `json:"command"`
	}
	if err := json.Unmarshal([]byte(text), &obj); err == nil && obj.Command != "" {
		return SanitizeLine(obj.Command)
	}
	return SanitizeLine(text)
}
