package memory

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// Persisted file names inside an agent directory.
const (
	RawTracesFile        = "raw_traces.jsonl"
	EpisodicFile         = "episodic.jsonl"
	SemanticFile         = "semantic.jsonl"
	RawTracesArchiveFile = "raw_traces_archive.jsonl"
)

// FileStore persists one agent's memory as JSON Lines files under
// <baseDir>/<agentID>/. Appends go to the end of the matching file; pruning
// rewrites the raw and archive files through temporary files and renames.
type FileStore struct {
	mu      sync.RWMutex
	dir     string
	agentID string
}

// NewFileStore creates the agent directory if needed and returns a store
// rooted there.
func NewFileStore(baseDir, agentID string) (*FileStore, error) {
	if err := ValidateAgentID(agentID); err != nil {
		return nil, err
	}
	base, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, &StoreIOError{Op: "resolve base dir", Path: baseDir, Err: err}
	}
	dir := filepath.Join(base, agentID)
	if !strings.HasPrefix(dir, base+string(filepath.Separator)) {
		return nil, newValidationError("agent_id", "path traversal detected")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, &StoreIOError{Op: "init directory", Path: dir, Err: err}
	}
	return &FileStore{dir: dir, agentID: agentID}, nil
}

// ValidateAgentID rejects ids that would escape the base directory.
func ValidateAgentID(agentID string) error {
	switch {
	case agentID == "":
		return newValidationError("agent_id", "missing")
	case strings.ContainsAny(agentID, `/\`):
		return newValidationError("agent_id", fmt.Sprintf("%q contains path separator", agentID))
	case agentID == "." || strings.Contains(agentID, ".."):
		return newValidationError("agent_id", fmt.Sprintf("%q is not a plain directory name", agentID))
	}
	return nil
}

// ListAgentIDs returns the agent directories under baseDir in name order.
// A missing baseDir yields an empty list.
func ListAgentIDs(baseDir string) ([]string, error) {
	entries, err := os.ReadDir(baseDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreIOError{Op: "list agents", Path: baseDir, Err: err}
	}
	var ids []string
	for _, e := range entries {
		if e.IsDir() && ValidateAgentID(e.Name()) == nil {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Dir returns the agent directory.
func (fs *FileStore) Dir() string { return fs.dir }

// AgentID returns the agent this store belongs to.
func (fs *FileStore) AgentID() string { return fs.agentID }

// Path returns the file backing a collection.
func (fs *FileStore) Path(kind Kind) string {
	switch kind {
	case KindEpisodic:
		return filepath.Join(fs.dir, EpisodicFile)
	case KindSemantic:
		return filepath.Join(fs.dir, SemanticFile)
	default:
		return filepath.Join(fs.dir, RawTracesFile)
	}
}

func (fs *FileStore) archivePath() string {
	return filepath.Join(fs.dir, RawTracesArchiveFile)
}

// Add implements Store. Items are encoded one JSON object per line and
// appended in call order. If any file write fails, files already appended to
// in this call are truncated back to their previous size.
func (fs *FileStore) Add(ctx context.Context, items ...Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateAll(items); err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	batches := make(map[Kind]*bytes.Buffer)
	var order []Kind
	for _, it := range items {
		buf, ok := batches[it.Kind()]
		if !ok {
			buf = &bytes.Buffer{}
			batches[it.Kind()] = buf
			order = append(order, it.Kind())
		}
		if err := encodeLine(buf, it); err != nil {
			return err
		}
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	type appended struct {
		path string
		size int64
	}
	var done []appended
	for _, kind := range order {
		path := fs.Path(kind)
		size, err := appendFile(path, batches[kind].Bytes())
		if err != nil {
			for _, a := range done {
				if terr := os.Truncate(a.path, a.size); terr != nil {
					slog.Warn("memory: rollback of partial append failed", "path", a.path, "err", terr)
				}
			}
			return err
		}
		done = append(done, appended{path: path, size: size})
	}
	return nil
}

// List implements Store. Corrupt lines are skipped with a warning.
func (fs *FileStore) List(ctx context.Context, kind Kind, limit int) ([]Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	switch kind {
	case KindRawTrace:
		raw, err := readLines[RawTraceItem](fs.Path(kind))
		if err != nil {
			return nil, err
		}
		return toItems(tail(raw, limit)), nil
	case KindEpisodic:
		ep, err := readLines[EpisodicItem](fs.Path(kind))
		if err != nil {
			return nil, err
		}
		return toItems(tail(ep, limit)), nil
	case KindSemantic:
		sem, err := readLines[SemanticItem](fs.Path(kind))
		if err != nil {
			return nil, err
		}
		return toItems(tail(sem, limit)), nil
	}
	return nil, newValidationError("kind", "unknown value "+string(kind))
}

// PruneRawTraces implements Store.
//
// The new raw and archive contents are staged in .tmp files. The archive is
// swapped in first with its previous version held as .bak; if swapping the raw
// file then fails, the archive is restored so neither file changes.
func (fs *FileStore) PruneRawTraces(ctx context.Context, keepTurnIDs []string, archive bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	rawPath := fs.Path(KindRawTrace)
	raw, err := readLines[RawTraceItem](rawPath)
	if err != nil {
		return err
	}
	kept, removed := splitByTurn(raw, keepSet(keepTurnIDs))
	if len(removed) == 0 {
		return nil
	}

	var rawBuf bytes.Buffer
	for _, tr := range kept {
		if err := encodeLine(&rawBuf, tr); err != nil {
			return err
		}
	}
	rawTmp := rawPath + ".tmp"
	if err := writeFile(rawTmp, rawBuf.Bytes()); err != nil {
		return err
	}

	if !archive {
		return commitRename(rawTmp, rawPath)
	}

	archivePath := fs.archivePath()
	prev, err := os.ReadFile(archivePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		_ = os.Remove(rawTmp)
		return &StoreIOError{Op: "read archive", Path: archivePath, Err: err}
	}
	hadArchive := err == nil
	archiveBuf := bytes.NewBuffer(prev)
	if hadArchive && len(prev) > 0 && prev[len(prev)-1] != '\n' {
		archiveBuf.WriteByte('\n')
	}
	for _, tr := range removed {
		if err := encodeLine(archiveBuf, tr); err != nil {
			_ = os.Remove(rawTmp)
			return err
		}
	}
	archiveTmp := archivePath + ".tmp"
	if err := writeFile(archiveTmp, archiveBuf.Bytes()); err != nil {
		_ = os.Remove(rawTmp)
		return err
	}

	backup := archivePath + ".bak"
	if hadArchive {
		if err := os.Rename(archivePath, backup); err != nil {
			_ = os.Remove(rawTmp)
			_ = os.Remove(archiveTmp)
			return &StoreIOError{Op: "backup archive", Path: archivePath, Err: err}
		}
	}
	if err := os.Rename(archiveTmp, archivePath); err != nil {
		_ = os.Remove(rawTmp)
		_ = os.Remove(archiveTmp)
		if hadArchive {
			_ = os.Rename(backup, archivePath)
		}
		return &StoreIOError{Op: "swap archive", Path: archivePath, Err: err}
	}
	if err := commitRename(rawTmp, rawPath); err != nil {
		if hadArchive {
			_ = os.Rename(backup, archivePath)
		} else {
			_ = os.Remove(archivePath)
		}
		return err
	}
	if hadArchive {
		_ = os.Remove(backup)
	}
	return nil
}

// ReadArchiveRawTraces implements Store.
func (fs *FileStore) ReadArchiveRawTraces(ctx context.Context) ([]*RawTraceItem, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fs.mu.RLock()
	defer fs.mu.RUnlock()
	return readLines[RawTraceItem](fs.archivePath())
}

func encodeLine(buf *bytes.Buffer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("memory: encode %T: %w", v, err)
	}
	buf.Write(b)
	buf.WriteByte('\n')
	return nil
}

// appendFile appends b to path and returns the size the file had before.
// A torn last line from an interrupted write is terminated first so b starts
// on a line of its own.
func appendFile(path string, b []byte) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o600)
	if err != nil {
		return 0, &StoreIOError{Op: "open", Path: path, Err: err}
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return 0, &StoreIOError{Op: "stat", Path: path, Err: err}
	}
	size := info.Size()
	if size > 0 {
		last := make([]byte, 1)
		if _, err := f.ReadAt(last, size-1); err != nil {
			_ = f.Close()
			return 0, &StoreIOError{Op: "read", Path: path, Err: err}
		}
		if last[0] != '\n' {
			b = append([]byte{'\n'}, b...)
		}
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		_ = os.Truncate(path, size)
		return 0, &StoreIOError{Op: "append", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return 0, &StoreIOError{Op: "close", Path: path, Err: err}
	}
	return size, nil
}

func writeFile(path string, b []byte) error {
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return &StoreIOError{Op: "write temp file", Path: path, Err: err}
	}
	return nil
}

func commitRename(tmp, path string) error {
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return &StoreIOError{Op: "atomic rename", Path: path, Err: err}
	}
	return nil
}

// readLines decodes a JSON Lines file. A missing file is empty; lines that
// fail to decode or validate are skipped.
func readLines[T any, PT interface {
	*T
	Item
}](path string) ([]PT, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, &StoreIOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	var out []PT
	r := bufio.NewReader(f)
	for lineNo := 1; ; lineNo++ {
		line, err := r.ReadBytes('\n')
		if len(bytes.TrimSpace(line)) > 0 {
			item := PT(new(T))
			if derr := json.Unmarshal(line, item); derr != nil {
				slog.Warn("memory: skipping corrupt record", "path", path, "line", lineNo, "err", derr)
			} else if verr := item.Validate(); verr != nil {
				slog.Warn("memory: skipping invalid record", "path", path, "line", lineNo, "err", verr)
			} else {
				out = append(out, item)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &StoreIOError{Op: "read", Path: path, Err: err}
		}
	}
	return out, nil
}
