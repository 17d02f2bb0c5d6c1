package vcf

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	gvcf "github.com/vertgenlab/gonomics/vcf"
)

// Record is one data line of a VCF.
type Record struct {
	Chrom  string
	Pos    uint32 // 1-based; 0 for telomeric records
	ID     string
	Ref    string
	Alt    []string
	Filter string

	// Line is the 1-based line number in the input stream.
	Line int64

	info Info
}

// Info returns the record's INFO column.
func (r *Record) Info() Info { return r.info }

// Info is the INFO column of a record. Values are decoded on lookup.
type Info struct {
	raw string
}

// NewInfo wraps raw INFO text such as "DP=10;VRS_Starts=1,2".
func NewInfo(raw string) Info {
	if raw == "." {
		raw = ""
	}
	return Info{raw: raw}
}

// Raw returns the undecoded INFO text.
func (i Info) Raw() string { return i.raw }

// Keys returns the INFO keys in column order.
func (i Info) Keys() []string {
	var keys []string
	for _, entry := range strings.Split(i.raw, ";") {
		if entry == "" {
			continue
		}
		key, _, _ := strings.Cut(entry, "=")
		keys = append(keys, key)
	}
	return keys
}

// Get looks up key and decodes it using the header definition. ok is false
// when the key is absent. A decode failure is returned as *ValueError.
func (i Info) Get(h *Header, key string) (v Value, ok bool, err error) {
	rest := i.raw
	for len(rest) > 0 {
		var entry string
		entry, rest, _ = strings.Cut(rest, ";")
		k, raw, hasValue := strings.Cut(entry, "=")
		if k != key {
			continue
		}
		def, _ := h.Info(key)
		v, err = decodeValue(def, raw, hasValue)
		return v, true, err
	}
	return Value{}, false, nil
}

// recordFrom converts a gonomics record read from line lineNum.
func recordFrom(v gvcf.Vcf, lineNum int64) (*Record, error) {
	if v.Chr == "" {
		return nil, fmt.Errorf("vcf: line %d: empty CHROM", lineNum)
	}
	if v.Pos < 0 || int64(v.Pos) > math.MaxUint32 {
		return nil, fmt.Errorf("vcf: line %d: invalid POS %d", lineNum, v.Pos)
	}

	rec := &Record{
		Chrom:  v.Chr,
		Pos:    uint32(v.Pos),
		ID:     v.Id,
		Ref:    v.Ref,
		Filter: v.Filter,
		Line:   lineNum,
		info:   NewInfo(v.Info),
	}
	if len(v.Alt) > 0 && !(len(v.Alt) == 1 && v.Alt[0] == ".") {
		rec.Alt = v.Alt
	}
	return rec, nil
}

// splitList splits a comma separated INFO list.
func splitList(raw string) []string {
	return strings.Split(raw, ",")
}

// unescapeInfo decodes the percent escapes VCF 4.3 allows in INFO strings.
// Unknown escapes are kept verbatim.
func unescapeInfo(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var sb strings.Builder
	sb.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '%' && i+2 < len(s) {
			if b, err := strconv.ParseUint(s[i+1:i+3], 16, 8); err == nil {
				sb.WriteByte(byte(b))
				i += 2
				continue
			}
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}
