// Package vcf reads Variant Call Format text streams.
//
// Framing and the header come from gonomics. On top of that the package
// decodes INFO values into typed shapes that keep per-element nulls, which
// the gonomics query helpers cannot represent. Sample columns are never
// decoded.
package vcf

import (
	"errors"
	"fmt"
	"strings"

	gvcf "github.com/vertgenlab/gonomics/vcf"
)

// InfoType is the declared Type of an INFO field.
type InfoType uint8

const (
	TypeString InfoType = iota
	TypeInteger
	TypeFloat
	TypeFlag
	TypeCharacter
)

// String returns the header spelling of the type.
func (t InfoType) String() string {
	switch t {
	case TypeInteger:
		return "Integer"
	case TypeFloat:
		return "Float"
	case TypeFlag:
		return "Flag"
	case TypeCharacter:
		return "Character"
	default:
		return "String"
	}
}

func infoTypeFrom(t gvcf.InfoType) (InfoType, error) {
	switch t {
	case gvcf.Integer:
		return TypeInteger, nil
	case gvcf.Float:
		return TypeFloat, nil
	case gvcf.Flag:
		return TypeFlag, nil
	case gvcf.Character:
		return TypeCharacter, nil
	case gvcf.String:
		return TypeString, nil
	default:
		return TypeString, fmt.Errorf("vcf: unknown INFO type %d", t)
	}
}

// InfoDef is one ##INFO header line.
type InfoDef struct {
	ID     string
	Number string // "0", "1", "2", ..., "A", "R", "G" or "."
	Type   InfoType
}

// IsArray reports whether values of this field are lists. Number=0 is a
// flag and Number=1 a single value; every other Number holds a list.
func (d InfoDef) IsArray() bool {
	return d.Number != "0" && d.Number != "1"
}

// Header holds the INFO definitions and column header of a VCF.
type Header struct {
	FileFormat string
	Infos      map[string]InfoDef
	Samples    []string
}

// NewHeader returns an empty header.
func NewHeader() *Header {
	return &Header{Infos: make(map[string]InfoDef)}
}

// Info returns the definition for an INFO key. Keys absent from the header
// resolve to Number=1, Type=String as the VCF specification prescribes.
func (h *Header) Info(key string) (InfoDef, bool) {
	if h != nil {
		if def, ok := h.Infos[key]; ok {
			return def, true
		}
	}
	return InfoDef{ID: key, Number: "1", Type: TypeString}, false
}

// AddInfo registers an INFO definition, replacing an existing one.
func (h *Header) AddInfo(def InfoDef) {
	if h.Infos == nil {
		h.Infos = make(map[string]InfoDef)
	}
	h.Infos[def.ID] = def
}

// headerFrom converts a gonomics header. The last header line must be the
// #CHROM column line.
func headerFrom(gh gvcf.Header) (*Header, error) {
	if len(gh.Text) == 0 {
		return nil, errors.New("vcf: missing #CHROM header line")
	}

	h := NewHeader()
	for _, line := range gh.Text {
		if v, ok := strings.CutPrefix(line, "##fileformat="); ok {
			h.FileFormat = v
		}
	}
	if err := h.parseColumnLine(gh.Text[len(gh.Text)-1]); err != nil {
		return nil, err
	}

	for id, ih := range gh.Info {
		t, err := infoTypeFrom(ih.Key.DataType)
		if err != nil {
			return nil, fmt.Errorf("%w (INFO %s)", err, id)
		}
		number := ih.Number
		if number == "" {
			number = "."
		}
		h.AddInfo(InfoDef{ID: id, Number: number, Type: t})
	}
	return h, nil
}

// parseColumnLine interprets the "#CHROM ..." line.
func (h *Header) parseColumnLine(line string) error {
	if strings.HasPrefix(line, "##") {
		return errors.New("vcf: missing #CHROM header line")
	}
	cols := strings.Split(strings.TrimPrefix(line, "#"), "\t")
	if len(cols) < 8 || cols[0] != "CHROM" {
		return fmt.Errorf("vcf: malformed column header: %q", line)
	}
	if len(cols) > 9 {
		h.Samples = append([]string(nil), cols[9:]...)
	}
	return nil
}
