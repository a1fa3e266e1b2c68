package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/pgzip"

	"github.com/gyeh/npi-directory/internal/provider"
)

// sink writes NDJSON records to a temp file next to the destination and
// renames it into place on commit.
type sink struct {
	dest    string
	file    *os.File
	gz      *pgzip.Writer
	buf     *bufio.Writer
	records int64
}

func newSink(dest string) (*sink, error) {
	dir := filepath.Dir(dest)
	f, err := os.CreateTemp(dir, "."+filepath.Base(dest)+".*.tmp")
	if err != nil {
		return nil, fmt.Errorf("creating export file: %w", err)
	}

	s := &sink{dest: dest, file: f}
	var w io.Writer = f
	if strings.HasSuffix(dest, ".gz") {
		s.gz = pgzip.NewWriter(f)
		w = s.gz
	}
	s.buf = bufio.NewWriterSize(w, 1<<20)
	return s, nil
}

// writePage appends every doctor of page, preferring the raw server bytes.
func (s *sink) writePage(page *provider.Page) error {
	for i := range page.Doctors {
		var line []byte
		if i < len(page.Raw) {
			line = compact(page.Raw[i])
		} else {
			b, err := json.Marshal(&page.Doctors[i])
			if err != nil {
				return fmt.Errorf("encoding NPI %d: %w", page.Doctors[i].Identification.NPI.Int64(), err)
			}
			line = b
		}
		if _, err := s.buf.Write(line); err != nil {
			return err
		}
		if err := s.buf.WriteByte('\n'); err != nil {
			return err
		}
		s.records++
	}
	return nil
}

// commit flushes every layer and moves the temp file to dest.
func (s *sink) commit() (int64, error) {
	if err := s.buf.Flush(); err != nil {
		s.abort()
		return 0, err
	}
	if s.gz != nil {
		if err := s.gz.Close(); err != nil {
			s.abort()
			return 0, err
		}
	}
	info, err := s.file.Stat()
	if err != nil {
		s.abort()
		return 0, err
	}
	if err := s.file.Close(); err != nil {
		os.Remove(s.file.Name())
		return 0, err
	}
	if err := os.Rename(s.file.Name(), s.dest); err != nil {
		os.Remove(s.file.Name())
		return 0, fmt.Errorf("moving export into place: %w", err)
	}
	return info.Size(), nil
}

func (s *sink) abort() {
	if s.gz != nil {
		s.gz.Close()
	}
	s.file.Close()
	os.Remove(s.file.Name())
}

// compact strips insignificant whitespace so each record stays on one line.
func compact(raw json.RawMessage) []byte {
	var b bytes.Buffer
	if err := json.Compact(&b, raw); err != nil {
		return raw
	}
	return b.Bytes()
}
