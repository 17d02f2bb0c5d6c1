package output

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/vrsindex/vrsindex/internal/model"
	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// DecodedGroup is one group read back from an output file.
type DecodedGroup struct {
	Group
	Counter uint64
}

// ScanResult summarizes an output file.
type ScanResult struct {
	Groups       int64
	FirstCounter uint64
	NextCounter  uint64

	// ValidBytes is the length of the prefix made of complete groups.
	ValidBytes int64
	TotalBytes int64

	// Torn is set when bytes follow the last complete group.
	Torn bool
}

// Empty reports whether the file holds no complete group.
func (r ScanResult) Empty() bool { return r.Groups == 0 }

// Walk reads groups from r in order and calls fn for each complete one.
// A trailing partial group is reported through ScanResult.Torn, not as an
// error. Malformed complete groups and counter gaps are CorruptOutput.
func Walk(r io.Reader, fn func(DecodedGroup) error) (ScanResult, error) {
	var (
		res   ScanResult
		br    = bufio.NewReaderSize(r, 64*1024)
		lines [LinesPerGroup]string
		n     int
		size  int64
	)

	for {
		line, err := br.ReadString('\n')
		res.TotalBytes += int64(len(line))
		if err != nil && !errors.Is(err, io.EOF) {
			return res, vrserrors.IoFailure("read output", err)
		}
		if errors.Is(err, io.EOF) {
			res.Torn = len(line) > 0 || n > 0
			return res, nil
		}

		lines[n] = line[:len(line)-1]
		size += int64(len(line))
		n++
		if n < LinesPerGroup {
			continue
		}

		g, perr := parseGroup(lines)
		if perr != nil {
			return res, vrserrors.Wrap(perr, vrserrors.CodeCorruptOutput, "malformed allele group").
				WithContext("offset", res.ValidBytes)
		}
		if res.Groups == 0 {
			res.FirstCounter = g.Counter
		} else if g.Counter != res.NextCounter {
			return res, vrserrors.New(vrserrors.CodeCorruptOutput, "counter is not contiguous").
				WithContext("offset", res.ValidBytes).
				WithContext("want", res.NextCounter).
				WithContext("got", g.Counter)
		}
		if fn != nil {
			if err := fn(g); err != nil {
				return res, err
			}
		}

		res.Groups++
		res.NextCounter = g.Counter + 1
		res.ValidBytes += size
		size = 0
		n = 0
	}
}

// Scan validates r and summarizes it.
func Scan(r io.Reader) (ScanResult, error) {
	return Walk(r, nil)
}

// ScanFile scans the file at path. A missing file scans as empty.
func ScanFile(path string) (ScanResult, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return ScanResult{}, nil
		}
		return ScanResult{}, vrserrors.IoFailure("open output", err)
	}
	defer f.Close()
	return Scan(f)
}

// Recover scans the file at path and truncates a torn trailing group so the
// file ends on a group boundary again.
func Recover(path string) (ScanResult, error) {
	res, err := ScanFile(path)
	if err != nil {
		return res, err
	}
	if res.Torn {
		if err := Truncate(path, res.ValidBytes); err != nil {
			return res, err
		}
	}
	return res, nil
}

// Truncate cuts the file at path down to size bytes and syncs it.
func Truncate(path string, size int64) error {
	f, err := os.OpenFile(path, os.O_WRONLY, 0)
	if err != nil {
		return vrserrors.IoFailure("open output for truncation", err)
	}
	defer f.Close()

	if err := f.Truncate(size); err != nil {
		return vrserrors.IoFailure("truncate output", err)
	}
	if err := f.Sync(); err != nil {
		return vrserrors.IoFailure("sync truncated output", err)
	}
	return nil
}

func parseGroup(lines [LinesPerGroup]string) (DecodedGroup, error) {
	var g DecodedGroup

	locus, err := parseLocus(lines[0])
	if err != nil {
		return g, err
	}
	g.Locus = locus

	start, counter, err := parseCoordinate(lines[2])
	if err != nil {
		return g, err
	}
	end, endCounter, err := parseCoordinate(lines[3])
	if err != nil {
		return g, err
	}
	if endCounter != counter {
		return g, errors.New("start and end lines carry different counters")
	}

	suffix := strconv.FormatUint(counter, 10)
	if len(lines[1]) <= len(suffix) || !strings.HasSuffix(lines[1], suffix) {
		return g, errors.New("identifier line does not end with the group counter")
	}
	g.CompactID = lines[1][:len(lines[1])-len(suffix)]
	if c := g.CompactID[0]; c < '0' || c > '9' {
		return g, errors.New("identifier line does not start with a type code")
	}

	g.Start = start
	g.End = end
	g.Counter = counter
	return g, nil
}

// parseLocus reads "<chrom>-<pos>-<source>". Chromosome names may contain
// '-', so the numeric fields are taken from the right.
func parseLocus(s string) (model.VariantLocus, error) {
	var l model.VariantLocus

	i := strings.LastIndexByte(s, '-')
	if i < 0 {
		return l, errors.New("locus line has no source id")
	}
	src, err := strconv.ParseUint(s[i+1:], 10, 8)
	if err != nil {
		return l, err
	}

	rest := s[:i]
	j := strings.LastIndexByte(rest, '-')
	if j <= 0 {
		return l, errors.New("locus line has no position")
	}
	pos, err := strconv.ParseUint(rest[j+1:], 10, 32)
	if err != nil {
		return l, err
	}

	l.Chromosome = rest[:j]
	l.Position = uint32(pos)
	l.SourceID = uint8(src)
	return l, nil
}

// parseCoordinate reads "<coordinate>-<counter>"; the coordinate may be negative.
func parseCoordinate(s string) (int32, uint64, error) {
	i := strings.LastIndexByte(s, '-')
	if i <= 0 {
		return 0, 0, errors.New("coordinate line has no counter")
	}
	counter, err := strconv.ParseUint(s[i+1:], 10, 64)
	if err != nil {
		return 0, 0, err
	}
	v, err := strconv.ParseInt(s[:i], 10, 32)
	if err != nil {
		return 0, 0, err
	}
	return int32(v), counter, nil
}
