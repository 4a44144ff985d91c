// Package journal persists a bounded history of sync runs.
//
// The journal is an append-only stream of length-prefixed records: a
// 4-byte big-endian payload size followed by the msgpack-encoded
// record. Appends are fsynced, so the worst a crash can leave behind
// is one truncated frame at the tail, which readers drop silently.
package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/halfmoth/stickersync/iox"
	"github.com/halfmoth/stickersync/types"
)

// MaxRecordSize is the maximum encoded record size (1 MiB), length
// prefix excluded.
const MaxRecordSize = 1 << 20

// lengthPrefixSize is the size of the length prefix in bytes.
const lengthPrefixSize = 4

// PackError records one failed pack inside a run record.
type PackError struct {
	Slug  string `msgpack:"slug"`
	Stage string `msgpack:"stage"`
	Error string `msgpack:"error"`
}

// Record is one sync run as persisted in the journal.
type Record struct {
	RunID      string      `msgpack:"run_id"`
	Trigger    string      `msgpack:"trigger"`
	Forced     bool        `msgpack:"forced"`
	StartedAt  time.Time   `msgpack:"started_at"`
	DurationMs int64       `msgpack:"duration_ms"`
	Success    bool        `msgpack:"success"`
	Installed  int         `msgpack:"installed"`
	Updated    int         `msgpack:"updated"`
	Removed    int         `msgpack:"removed"`
	Unchanged  int         `msgpack:"unchanged"`
	Failed     []PackError `msgpack:"failed,omitempty"`
}

// NewRecord converts a run outcome into its journal form.
func NewRecord(outcome *types.SyncOutcome) *Record {
	rec := &Record{
		RunID:      outcome.RunID,
		Trigger:    string(outcome.Trigger),
		Forced:     outcome.Forced,
		StartedAt:  outcome.StartedAt,
		DurationMs: outcome.Duration.Milliseconds(),
		Success:    outcome.Success,
		Installed:  len(outcome.Installed),
		Updated:    len(outcome.Updated),
		Removed:    len(outcome.Removed),
		Unchanged:  len(outcome.Unchanged),
	}
	for _, f := range outcome.Failed {
		rec.Failed = append(rec.Failed, PackError{Slug: f.Slug, Stage: f.Stage, Error: f.Error})
	}
	return rec
}

// RecordErrorKind classifies journal decoding errors.
type RecordErrorKind int

const (
	// RecordErrorTruncated indicates an incomplete frame.
	RecordErrorTruncated RecordErrorKind = iota
	// RecordErrorTooLarge indicates a frame exceeding MaxRecordSize.
	RecordErrorTooLarge
	// RecordErrorDecode indicates a msgpack decoding error.
	RecordErrorDecode
)

// RecordError represents a journal encoding or decoding error.
type RecordError struct {
	Kind RecordErrorKind
	Msg  string
	Err  error
}

func (e *RecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *RecordError) Unwrap() error {
	return e.Err
}

// Journal reads and appends sync history at a fixed path.
// Safe for concurrent use within one process.
type Journal struct {
	path string
	mu   sync.Mutex
}

// Open returns a journal at path. The file is created lazily on the
// first append.
func Open(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the journal file location.
func (j *Journal) Path() string { return j.path }

// Append encodes the record and appends one frame, fsyncing before
// close so the history survives a crash right after a run.
func (j *Journal) Append(rec *Record) error {
	frame, err := encodeFrame(rec)
	if err != nil {
		return err
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.OpenFile(j.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	if _, err := f.Write(frame); err != nil {
		_ = f.Close()
		return fmt.Errorf("append record: %w", err)
	}
	return iox.SyncClose(f)
}

// ReadAll returns every intact record in append order. A missing file
// yields no records; a truncated final frame is dropped without error;
// corruption anywhere else surfaces as a *RecordError alongside the
// records read before it.
func (j *Journal) ReadAll() ([]Record, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return readAll(j.path)
}

// Prune rewrites the journal keeping only the newest keep records.
// keep <= 0 empties the journal. The rewrite goes through a temp file
// and rename, so a crash never loses the history mid-prune.
func (j *Journal) Prune(keep int) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	records, err := readAll(j.path)
	if err != nil {
		return err
	}
	if keep < 0 {
		keep = 0
	}
	if len(records) <= keep {
		return nil
	}
	records = records[len(records)-keep:]

	tmp := j.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("create journal temp: %w", err)
	}
	for i := range records {
		frame, err := encodeFrame(&records[i])
		if err != nil {
			_ = f.Close()
			return err
		}
		if _, err := f.Write(frame); err != nil {
			_ = f.Close()
			return fmt.Errorf("write journal temp: %w", err)
		}
	}
	if err := iox.SyncClose(f); err != nil {
		return fmt.Errorf("sync journal temp: %w", err)
	}
	return os.Rename(tmp, j.path)
}

// encodeFrame renders one record as a length-prefixed frame.
func encodeFrame(rec *Record) ([]byte, error) {
	payload, err := msgpack.Marshal(rec)
	if err != nil {
		return nil, &RecordError{Kind: RecordErrorDecode, Msg: "encode record", Err: err}
	}
	if len(payload) > MaxRecordSize {
		return nil, &RecordError{
			Kind: RecordErrorTooLarge,
			Msg:  fmt.Sprintf("record size %d exceeds maximum %d", len(payload), MaxRecordSize),
		}
	}

	frame := make([]byte, lengthPrefixSize+len(payload))
	binary.BigEndian.PutUint32(frame[:lengthPrefixSize], uint32(len(payload)))
	copy(frame[lengthPrefixSize:], payload)
	return frame, nil
}

func readAll(path string) ([]Record, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer iox.DiscardClose(f)

	r := bufio.NewReader(f)
	var records []Record
	for {
		var lengthBuf [lengthPrefixSize]byte
		_, err := io.ReadFull(r, lengthBuf[:])
		if err == io.EOF {
			return records, nil
		}
		if errors.Is(err, io.ErrUnexpectedEOF) {
			// Crash residue: a partial length prefix at the tail.
			return records, nil
		}
		if err != nil {
			return records, fmt.Errorf("read journal: %w", err)
		}

		size := binary.BigEndian.Uint32(lengthBuf[:])
		if size > MaxRecordSize {
			return records, &RecordError{
				Kind: RecordErrorTooLarge,
				Msg:  fmt.Sprintf("record size %d exceeds maximum %d", size, MaxRecordSize),
			}
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(r, payload); err != nil {
			if err == io.EOF || errors.Is(err, io.ErrUnexpectedEOF) {
				// Crash residue: final frame shorter than its prefix.
				return records, nil
			}
			return records, fmt.Errorf("read journal: %w", err)
		}

		var rec Record
		if err := msgpack.Unmarshal(payload, &rec); err != nil {
			return records, &RecordError{Kind: RecordErrorDecode, Msg: "decode record", Err: err}
		}
		records = append(records, rec)
	}
}
