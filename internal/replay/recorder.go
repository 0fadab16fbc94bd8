package replay

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

var matchCleaner = regexp.MustCompile(`[^a-zA-Z0-9_-]+`)

var ErrClosed = errors.New("replay recorder closed")

// Record is one line of a replay: a match event with its capture time.
type Record struct {
	Seq        int             `json:"seq"`
	Type       string          `json:"type"`
	CapturedAt time.Time       `json:"captured_at"`
	Payload    json.RawMessage `json:"payload"`
}

// Recorder buffers a match's events in memory until the match ends and the
// archive is encoded.
type Recorder struct {
	mu      sync.Mutex
	matchID string
	records []Record
	closed  bool
}

func NewRecorder(matchID string) *Recorder {
	return &Recorder{matchID: matchID}
}

func (r *Recorder) MatchID() string {
	return r.matchID
}

// Append stores payload as the next record.
func (r *Recorder) Append(kind string, at time.Time, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s payload: %w", kind, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return ErrClosed
	}
	r.records = append(r.records, Record{
		Seq:        len(r.records) + 1,
		Type:       kind,
		CapturedAt: at.UTC(),
		Payload:    data,
	})
	return nil
}

func (r *Recorder) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.records)
}

// Reset drops everything recorded so far, for rematches.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = nil
	r.closed = false
}

// Finish closes the recorder and returns the zstd-compressed JSONL archive.
func (r *Recorder) Finish() ([]byte, error) {
	r.mu.Lock()
	records := make([]Record, len(r.records))
	copy(records, r.records)
	r.closed = true
	r.mu.Unlock()

	return Encode(records)
}

// Encode writes records as zstd-compressed JSON lines.
func Encode(records []Record) ([]byte, error) {
	var buf bytes.Buffer
	enc, err := zstd.NewWriter(&buf)
	if err != nil {
		return nil, err
	}
	w := json.NewEncoder(enc)
	for _, rec := range records {
		if err := w.Encode(rec); err != nil {
			enc.Close()
			return nil, err
		}
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reverses Encode.
func Decode(data []byte) ([]Record, error) {
	dec, err := zstd.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var out []Record
	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, fmt.Errorf("decode replay record %d: %w", len(out)+1, err)
		}
		out = append(out, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// WriteFile stores an encoded archive under dir and returns its path.
func WriteFile(dir, matchID string, data []byte, created time.Time) (string, error) {
	if dir == "" {
		return "", fmt.Errorf("replay directory must be provided")
	}
	cleaned := matchCleaner.ReplaceAllString(matchID, "")
	if cleaned == "" {
		cleaned = "match"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, fmt.Sprintf("%s-%s.jsonl.zst", cleaned, created.UTC().Format("20060102T150405Z")))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
