// Package output encodes allele groups into the append-only index file and
// reads such files back for recovery and inspection.
//
// Every allele is written as four newline-terminated lines keyed by a
// monotonic counter n:
//
//	<chromosome>-<position>-<sourceId>
//	<compactId><n>
//	<start>-<n>
//	<end>-<n>
package output

import (
	"strconv"

	"github.com/vrsindex/vrsindex/internal/model"
)

// LinesPerGroup is the number of lines one allele occupies.
const LinesPerGroup = 4

// Group is the data persisted for one allele.
type Group struct {
	Locus     model.VariantLocus
	CompactID string
	Start     int32
	End       int32
}

// Encode appends the four lines of g, keyed by counter, to dst.
func Encode(dst []byte, g Group, counter uint64) []byte {
	dst = append(dst, g.Locus.Chromosome...)
	dst = append(dst, '-')
	dst = strconv.AppendUint(dst, uint64(g.Locus.Position), 10)
	dst = append(dst, '-')
	dst = strconv.AppendUint(dst, uint64(g.Locus.SourceID), 10)
	dst = append(dst, '\n')

	dst = append(dst, g.CompactID...)
	dst = strconv.AppendUint(dst, counter, 10)
	dst = append(dst, '\n')

	dst = strconv.AppendInt(dst, int64(g.Start), 10)
	dst = append(dst, '-')
	dst = strconv.AppendUint(dst, counter, 10)
	dst = append(dst, '\n')

	dst = strconv.AppendInt(dst, int64(g.End), 10)
	dst = append(dst, '-')
	dst = strconv.AppendUint(dst, counter, 10)
	dst = append(dst, '\n')
	return dst
}
