package cache

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/anthanhphan/go-model-share/internal/api/config"
	"github.com/anthanhphan/go-model-share/internal/api/domain"
	"github.com/anthanhphan/go-model-share/internal/api/port"
	"github.com/anthanhphan/gosdk/logger"
)

const (
	LogFileName = "models.log"

	opPut byte = 1
	opDel byte = 2

	maxKeyLen   = 64 * 1024
	maxValueLen = 4 * 1024 * 1024
)

var errCorruptEntry = errors.New("corrupt log entry")

// logFile is the append handle; *os.File in production.
type logFile interface {
	io.Writer
	Sync() error
	Stat() (os.FileInfo, error)
	Truncate(size int64) error
	Close() error
}

// logEntry is the in-memory index value for one live key.
type logEntry struct {
	seq    uint64
	record domain.ModelRecord
}

// LogFileStore is a CacheStore backed by a single append-only log.
//
// Entry format: Op (1) | Key_Len (4) | Key (N) | Val_Len (4) | Val (M) | CRC32 (4)
// where the checksum covers op, key and value. Startup replays the log into an
// in-memory index and truncates a torn or corrupt tail, so a record is either
// fully present or absent.
type LogFileStore struct {
	indexMu sync.RWMutex
	fileMu  sync.Mutex

	path                string
	prefix              string
	file                logFile
	// broken is set when a failed append could not be rolled back; later appends are refused.
	broken error
	fsync               bool
	compactionThreshold int

	index   map[string]logEntry
	nextSeq uint64
	dead    int
}

var _ port.CacheStore = (*LogFileStore)(nil)

// NewLogFileStore opens or creates the log in cfg.DataDir and replays it.
func NewLogFileStore(cfg config.LogFileConfig, prefix string) (*LogFileStore, error) {
	if err := os.MkdirAll(cfg.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}

	s := &LogFileStore{
		path:                filepath.Join(filepath.Clean(cfg.DataDir), LogFileName),
		prefix:              prefix,
		fsync:               cfg.FSync,
		compactionThreshold: cfg.CompactionThreshold,
		index:               make(map[string]logEntry),
	}

	if err := s.replay(); err != nil {
		return nil, fmt.Errorf("failed to replay cache log: %w", err)
	}
	if err := s.openForAppend(); err != nil {
		return nil, err
	}

	logger.Infow("Cache log opened", "path", s.path, "records", len(s.index), "dead_entries", s.dead)
	return s, nil
}

func (s *LogFileStore) openForAppend() error {
	// G304: path is built from the configured data dir
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600) // #nosec G304
	if err != nil {
		return fmt.Errorf("failed to open cache log: %w", err)
	}
	s.file = file
	return nil
}

// replay rebuilds the index from the log, truncating any partial tail.
func (s *LogFileStore) replay() error {
	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0600) // #nosec G304
	if err != nil {
		return err
	}
	defer func() { _ = file.Close() }()

	reader := bufio.NewReader(file)
	offset := int64(0)
	truncated := false

	for {
		op, key, value, size, err := readLogEntry(reader)
		if err == io.EOF {
			break
		}
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, errCorruptEntry) {
				truncated = true
				break
			}
			return err
		}

		s.applyLocked(op, key, value)
		offset += size
	}

	if truncated {
		if err := file.Truncate(offset); err != nil {
			return fmt.Errorf("failed to truncate partial cache log: %w", err)
		}
		logger.Warnw("Truncated partial cache log tail during replay", "path", s.path, "valid_bytes", offset)
	}
	return nil
}

// applyLocked folds one replayed entry into the index. Callers hold indexMu or run before publication.
func (s *LogFileStore) applyLocked(op byte, key string, value []byte) {
	existing, exists := s.index[key]

	switch op {
	case opPut:
		var rec domain.ModelRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			logger.Warnw("Skipping undecodable cache log entry", "key", key, "error", err.Error())
			s.dead++
			return
		}
		if exists {
			s.dead++
			existing.record = rec
			s.index[key] = existing
			return
		}
		s.nextSeq++
		s.index[key] = logEntry{seq: s.nextSeq, record: rec}
	case opDel:
		s.dead++
		if exists {
			delete(s.index, key)
			s.dead++
		}
	}
}

func readLogEntry(r io.Reader) (op byte, key string, value []byte, size int64, err error) {
	head := make([]byte, 5)
	if _, err = io.ReadFull(r, head); err != nil {
		if err == io.ErrUnexpectedEOF {
			return 0, "", nil, 0, err
		}
		return 0, "", nil, 0, err
	}
	op = head[0]
	if op != opPut && op != opDel {
		return 0, "", nil, 0, errCorruptEntry
	}

	keyLen := binary.BigEndian.Uint32(head[1:5])
	if keyLen == 0 || keyLen > maxKeyLen {
		return 0, "", nil, 0, errCorruptEntry
	}
	keyBuf := make([]byte, keyLen)
	if _, err = io.ReadFull(r, keyBuf); err != nil {
		return 0, "", nil, 0, unexpectedEOF(err)
	}

	lenBuf := make([]byte, 4)
	if _, err = io.ReadFull(r, lenBuf); err != nil {
		return 0, "", nil, 0, unexpectedEOF(err)
	}
	valLen := binary.BigEndian.Uint32(lenBuf)
	if valLen > maxValueLen {
		return 0, "", nil, 0, errCorruptEntry
	}
	value = make([]byte, valLen)
	if _, err = io.ReadFull(r, value); err != nil {
		return 0, "", nil, 0, unexpectedEOF(err)
	}

	checksumBuf := make([]byte, 4)
	if _, err = io.ReadFull(r, checksumBuf); err != nil {
		return 0, "", nil, 0, unexpectedEOF(err)
	}
	if binary.BigEndian.Uint32(checksumBuf) != entryChecksum(op, keyBuf, value) {
		return 0, "", nil, 0, errCorruptEntry
	}

	size = int64(5) + int64(keyLen) + 4 + int64(valLen) + 4
	return op, string(keyBuf), value, size, nil
}

func unexpectedEOF(err error) error {
	if err == io.EOF {
		return io.ErrUnexpectedEOF
	}
	return err
}

func entryChecksum(op byte, key, value []byte) uint32 {
	h := crc32.NewIEEE()
	_, _ = h.Write([]byte{op})
	_, _ = h.Write(key)
	_, _ = h.Write(value)
	return h.Sum32()
}

func encodeLogEntry(op byte, key string, value []byte) []byte {
	keyBytes := []byte(key)
	buf := make([]byte, 0, 5+len(keyBytes)+4+len(value)+4)
	buf = append(buf, op)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(keyBytes))) // #nosec G115
	buf = append(buf, keyBytes...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(value))) // #nosec G115
	buf = append(buf, value...)
	buf = binary.BigEndian.AppendUint32(buf, entryChecksum(op, keyBytes, value))
	return buf
}

// appendLocked writes one complete entry. A failed write or sync is cut back
// to the previous end of the log so replay never stops at it. Callers hold fileMu.
func (s *LogFileStore) appendLocked(entry []byte) error {
	if s.file == nil {
		return fmt.Errorf("cache log closed")
	}
	if s.broken != nil {
		return fmt.Errorf("cache log unusable after failed rollback: %w", s.broken)
	}

	info, err := s.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat cache log: %w", err)
	}
	end := info.Size()

	if _, err := s.file.Write(entry); err != nil {
		return s.rollbackLocked(end, fmt.Errorf("failed to append cache log: %w", err))
	}
	if s.fsync {
		if err := s.file.Sync(); err != nil {
			return s.rollbackLocked(end, fmt.Errorf("failed to sync cache log: %w", err))
		}
	}
	return nil
}

func (s *LogFileStore) rollbackLocked(end int64, cause error) error {
	if err := s.file.Truncate(end); err != nil {
		s.broken = err
		logger.Errorw("Cache log rollback failed, refusing further writes", "path", s.path, "error", err.Error())
		return fmt.Errorf("%w (rollback failed: %v)", cause, err)
	}
	logger.Warnw("Rolled back failed cache log append", "path", s.path, "valid_bytes", end, "error", cause.Error())
	return cause
}

func (s *LogFileStore) key(id string) string {
	return s.prefix + id
}

func (s *LogFileStore) Get(ctx context.Context, id string) (*domain.ModelRecord, error) {
	s.indexMu.RLock()
	entry, ok := s.index[s.key(id)]
	s.indexMu.RUnlock()

	if !ok {
		return nil, port.ErrRecordNotFound
	}
	rec := entry.record
	return &rec, nil
}

func (s *LogFileStore) Put(ctx context.Context, record domain.ModelRecord) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", record.ID, err)
	}
	if len(payload) > maxValueLen {
		return fmt.Errorf("record %s too large for cache log", record.ID)
	}
	key := s.key(record.ID)

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	if err := s.appendLocked(encodeLogEntry(opPut, key, payload)); err != nil {
		return err
	}

	s.indexMu.Lock()
	entry, exists := s.index[key]
	if exists {
		s.dead++
	} else {
		s.nextSeq++
		entry.seq = s.nextSeq
	}
	entry.record = record
	s.index[key] = entry
	s.indexMu.Unlock()

	s.maybeCompactLocked()
	return nil
}

func (s *LogFileStore) Remove(ctx context.Context, id string) error {
	key := s.key(id)

	s.fileMu.Lock()
	defer s.fileMu.Unlock()

	s.indexMu.RLock()
	_, exists := s.index[key]
	s.indexMu.RUnlock()
	if !exists {
		return nil
	}

	if err := s.appendLocked(encodeLogEntry(opDel, key, nil)); err != nil {
		return err
	}

	s.indexMu.Lock()
	delete(s.index, key)
	// The tombstone and the put it shadows are both reclaimable.
	s.dead += 2
	s.indexMu.Unlock()

	s.maybeCompactLocked()
	return nil
}

func (s *LogFileStore) ListAll(ctx context.Context) ([]domain.ModelRecord, error) {
	s.indexMu.RLock()
	items := make([]sequencedRecord, 0, len(s.index))
	for _, entry := range s.index {
		items = append(items, sequencedRecord{seq: entry.seq, record: entry.record})
	}
	s.indexMu.RUnlock()

	return orderRecords(items), nil
}

func (s *LogFileStore) maybeCompactLocked() {
	if s.compactionThreshold <= 0 {
		return
	}
	s.indexMu.RLock()
	dead := s.dead
	s.indexMu.RUnlock()
	if dead < s.compactionThreshold {
		return
	}
	if err := s.compactLocked(); err != nil {
		logger.Warnw("Cache log compaction failed", "path", s.path, "error", err.Error())
	}
}

// Compact rewrites the log with only live records, in insertion order.
func (s *LogFileStore) Compact() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	return s.compactLocked()
}

func (s *LogFileStore) compactLocked() error {
	s.indexMu.RLock()
	keys := make([]string, 0, len(s.index))
	for k := range s.index {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return s.index[keys[i]].seq < s.index[keys[j]].seq })

	entries := make([][]byte, 0, len(keys))
	for _, k := range keys {
		payload, err := json.Marshal(s.index[k].record)
		if err != nil {
			s.indexMu.RUnlock()
			return fmt.Errorf("encode record %s: %w", k, err)
		}
		entries = append(entries, encodeLogEntry(opPut, k, payload))
	}
	s.indexMu.RUnlock()

	tmpPath := s.path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600) // #nosec G304
	if err != nil {
		return err
	}
	w := bufio.NewWriter(tmp)
	for _, e := range entries {
		if _, err := w.Write(e); err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmpPath)
			return err
		}
	}
	if err := w.Flush(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}

	if s.file != nil {
		_ = s.file.Close()
		s.file = nil
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		if reopenErr := s.openForAppend(); reopenErr != nil {
			logger.Errorw("Failed to reopen cache log after compaction failure", "error", reopenErr.Error())
		}
		return err
	}
	if err := s.openForAppend(); err != nil {
		return err
	}

	s.broken = nil

	s.indexMu.Lock()
	s.dead = 0
	s.indexMu.Unlock()

	logger.Infow("Cache log compacted", "path", s.path, "live_records", len(entries))
	return nil
}

func (s *LogFileStore) Close() error {
	s.fileMu.Lock()
	defer s.fileMu.Unlock()
	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
