// Package verify checks directory exports and raw page dumps for duplicate
// or missing NPIs and, optionally, for records whose stored data_hash no
// longer matches their content.
package verify

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/danielchalef/jsplit/pkg/jsplit"
	"github.com/klauspost/pgzip"
	simdjson "github.com/minio/simdjson-go"
	"github.com/rs/zerolog/log"

	"github.com/gyeh/npi-directory/internal/provider"
)

// maxReported caps the NPIs listed per problem in a Report.
const maxReported = 20

// Options controls a verification run.
type Options struct {
	// Hashes recomputes each record's data_hash.
	Hashes bool
	// TmpDir holds split output for raw dumps; empty means os.TempDir().
	TmpDir string
	// OnRecord, when set, is called after each record is scanned.
	OnRecord func(n int64)
}

// Report summarizes a verified file.
type Report struct {
	Records          int64
	Duplicates       int64
	MissingNPI       int64
	Malformed        int64
	HashMismatches   int64
	HashMissing      int64
	HashUnverifiable int64 // stored hashes that cannot be recomputed

	DuplicateNPIs []int64
	MismatchNPIs  []int64
}

// OK reports whether no problems were found. Missing and unverifiable
// hashes are not counted as problems.
func (r *Report) OK() bool {
	return r.Duplicates == 0 && r.MissingNPI == 0 && r.Malformed == 0 && r.HashMismatches == 0
}

// File verifies an NDJSON export (".jsonl", ".ndjson") or a raw page dump
// (".json"), either optionally gzip-compressed.
func File(ctx context.Context, path string, opts Options) (*Report, error) {
	files := []string{path}
	if isRawDump(path) {
		dir, err := os.MkdirTemp(opts.TmpDir, "verify-split-*")
		if err != nil {
			return nil, fmt.Errorf("creating split dir: %w", err)
		}
		defer os.RemoveAll(dir)

		files, err = splitDump(path, dir)
		if err != nil {
			return nil, err
		}
	}

	s := newScanner(opts)
	for _, f := range files {
		if err := s.scanFile(ctx, f); err != nil {
			return nil, err
		}
	}
	return s.report(), nil
}

func isRawDump(path string) bool {
	return strings.HasSuffix(strings.TrimSuffix(path, ".gz"), ".json")
}

// splitDump turns {"doctors": [...], "pagination": {...}} into NDJSON files
// holding one doctor per line.
func splitDump(path, dir string) ([]string, error) {
	input := path
	if strings.HasSuffix(path, ".gz") {
		plain := filepath.Join(dir, "dump.json")
		if err := gunzipTo(path, plain); err != nil {
			return nil, err
		}
		input = plain
	}

	out := filepath.Join(dir, "split")
	if err := splitQuiet(input, out); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		return nil, fmt.Errorf("reading split output dir: %w", err)
	}
	var files []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, "doctors_") && strings.HasSuffix(name, ".jsonl") {
			files = append(files, filepath.Join(out, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

// splitQuiet runs jsplit with its progress prints sent to /dev/null.
func splitQuiet(input, outDir string) error {
	origStdout := os.Stdout
	devNull, err := os.Open(os.DevNull)
	if err != nil {
		return fmt.Errorf("opening %s: %w", os.DevNull, err)
	}
	os.Stdout = devNull
	err = jsplit.Split(input, outDir, true)
	os.Stdout = origStdout
	devNull.Close()
	if err != nil {
		return fmt.Errorf("splitting page dump: %w", err)
	}
	return nil
}

func gunzipTo(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	zr, err := pgzip.NewReader(in)
	if err != nil {
		return fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, zr); err != nil {
		out.Close()
		return fmt.Errorf("decompressing %s: %w", src, err)
	}
	return out.Close()
}

// scanner accumulates a Report across one or more NDJSON files.
type scanner struct {
	opts    Options
	useSimd bool
	pj      *simdjson.ParsedJson
	seen    map[int64]struct{}
	rep     Report
}

func newScanner(opts Options) *scanner {
	return &scanner{
		opts:    opts,
		useSimd: simdjson.SupportedCPU(),
		seen:    make(map[int64]struct{}),
	}
}

func (s *scanner) scanFile(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := pgzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("opening gzip stream: %w", err)
		}
		defer zr.Close()
		r = zr
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 1024*1024), 64*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		s.record(line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	return nil
}

func (s *scanner) record(line []byte) {
	s.rep.Records++
	if s.opts.OnRecord != nil {
		defer s.opts.OnRecord(s.rep.Records)
	}

	var (
		key keyFields
		err error
	)
	if s.useSimd {
		key, err = s.extractSimd(line)
	} else {
		key, err = extractStd(line)
	}
	if err != nil {
		s.rep.Malformed++
		log.Debug().Err(err).Int64("record", s.rep.Records).Msg("unparsable record")
		return
	}

	if key.npi == 0 {
		s.rep.MissingNPI++
	} else if _, dup := s.seen[key.npi]; dup {
		s.rep.Duplicates++
		if len(s.rep.DuplicateNPIs) < maxReported {
			s.rep.DuplicateNPIs = append(s.rep.DuplicateNPIs, key.npi)
		}
	} else {
		s.seen[key.npi] = struct{}{}
	}

	if !s.opts.Hashes {
		return
	}
	if key.hash == "" {
		s.rep.HashMissing++
		return
	}
	check, err := provider.VerifyHash(line)
	if err != nil {
		s.rep.Malformed++
		return
	}
	switch check.Status {
	case provider.HashMissing:
		s.rep.HashMissing++
	case provider.HashUnverifiable:
		s.rep.HashUnverifiable++
	case provider.HashMismatch:
		s.rep.HashMismatches++
		if len(s.rep.MismatchNPIs) < maxReported {
			s.rep.MismatchNPIs = append(s.rep.MismatchNPIs, key.npi)
		}
	}
}

func (s *scanner) report() *Report {
	r := s.rep
	return &r
}
