package persist

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kasuganosora/basebuild/server/game/world"
	"github.com/klauspost/compress/zstd"
)

const (
	fileExt    = ".snap.zst"
	fileFormat = "basebuild-snapshot"
)

// Header is the first line of a snapshot file, readable without decoding the
// body.
type Header struct {
	Format string `json:"format"`
	Info
}

// WriteFile writes s to path as a zstd stream holding a JSON header line and
// the JSON snapshot. The file is replaced atomically.
func WriteFile(path string, name string, s *world.Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := encode(tmp, name, s); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func encode(f *os.File, name string, s *world.Snapshot) error {
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(enc, 256*1024)

	hb, err := json.Marshal(Header{Format: fileFormat, Info: infoOf(name, s, time.Now().UTC())})
	if err != nil {
		return err
	}
	if _, err := bw.Write(append(hb, '\n')); err != nil {
		return err
	}
	if err := json.NewEncoder(bw).Encode(s); err != nil {
		return fmt.Errorf("snapshot encode: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return err
	}
	return enc.Close()
}

func openFile(path string) (*os.File, *zstd.Decoder, *bufio.Reader, Header, error) {
	var h Header
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, nil, h, err
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, nil, nil, h, err
	}
	br := bufio.NewReaderSize(dec, 256*1024)
	line, err := br.ReadBytes('\n')
	if err == nil {
		err = json.Unmarshal(line, &h)
	}
	if err == nil && h.Format != fileFormat {
		err = fmt.Errorf("unexpected format %q", h.Format)
	}
	if err != nil {
		dec.Close()
		f.Close()
		return nil, nil, nil, h, fmt.Errorf("snapshot header %s: %w", path, err)
	}
	return f, dec, br, h, nil
}

// ReadHeader returns only the header line of a snapshot file.
func ReadHeader(path string) (Header, error) {
	f, dec, _, h, err := openFile(path)
	if err != nil {
		return h, err
	}
	dec.Close()
	f.Close()
	return h, nil
}

// ReadFile decodes a snapshot written by WriteFile.
func ReadFile(path string) (*world.Snapshot, Header, error) {
	f, dec, br, h, err := openFile(path)
	if err != nil {
		return nil, h, err
	}
	defer f.Close()
	defer dec.Close()

	var s world.Snapshot
	if err := json.NewDecoder(br).Decode(&s); err != nil {
		return nil, h, fmt.Errorf("snapshot decode: %w", err)
	}
	return &s, h, nil
}

// FileStore keeps one file per save name in a directory.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir; the directory is created on the
// first save.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

func (st *FileStore) path(name string) string {
	return filepath.Join(st.dir, name+fileExt)
}

func (st *FileStore) Save(_ context.Context, name string, s *world.Snapshot) error {
	if err := checkName(name); err != nil {
		return err
	}
	return WriteFile(st.path(name), name, s)
}

func (st *FileStore) Load(_ context.Context, name string) (*world.Snapshot, error) {
	if err := checkName(name); err != nil {
		return nil, err
	}
	s, _, err := ReadFile(st.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return s, err
}

// List reads every header in the directory, sorted by name. Unreadable files
// are skipped.
func (st *FileStore) List(_ context.Context) ([]Info, error) {
	entries, err := os.ReadDir(st.dir)
	if errors.Is(err, os.ErrNotExist) {
		return []Info{}, nil
	}
	if err != nil {
		return nil, err
	}
	out := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		h, err := ReadHeader(filepath.Join(st.dir, e.Name()))
		if err != nil {
			continue
		}
		h.Info.Name = strings.TrimSuffix(e.Name(), fileExt)
		out = append(out, h.Info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (st *FileStore) Delete(_ context.Context, name string) error {
	if err := checkName(name); err != nil {
		return err
	}
	err := os.Remove(st.path(name))
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return err
}
