package vrs

import (
	"fmt"
	"strings"

	vrserrors "github.com/vrsindex/vrsindex/pkg/errors"
)

// Namespace is the CURIE prefix of GA4GH computed identifiers.
const Namespace = "ga4gh"

// VariationType is one kind of VRS object that can be compacted. Code is
// the single decimal digit that replaces Token in a compact identifier.
type VariationType struct {
	Name  string
	Token string
	Code  byte
}

// variationTypes is the closed set of compactable kinds. New kinds are added
// here and nowhere else; codes must never be reassigned once written.
var variationTypes = []VariationType{
	{Name: "Allele", Token: "VA", Code: '1'},
}

var (
	typesByToken map[string]VariationType
	typesByCode  map[byte]VariationType
)

func init() {
	var err error
	typesByToken, typesByCode, err = indexVariationTypes(variationTypes)
	if err != nil {
		panic(err)
	}
}

// indexVariationTypes validates a type table and builds its lookup maps.
// Codes are one ASCII digit, so at most ten kinds fit.
func indexVariationTypes(types []VariationType) (map[string]VariationType, map[byte]VariationType, error) {
	byToken := make(map[string]VariationType, len(types))
	byCode := make(map[byte]VariationType, len(types))
	for _, vt := range types {
		if vt.Code < '0' || vt.Code > '9' {
			return nil, nil, fmt.Errorf("vrs: variation type %s: code %q is not a decimal digit", vt.Name, vt.Code)
		}
		if vt.Token == "" || strings.ContainsAny(vt.Token, ".:") {
			return nil, nil, fmt.Errorf("vrs: variation type %s: invalid token %q", vt.Name, vt.Token)
		}
		if prev, dup := byCode[vt.Code]; dup {
			return nil, nil, fmt.Errorf("vrs: code %q used by both %s and %s", vt.Code, prev.Name, vt.Name)
		}
		if prev, dup := byToken[vt.Token]; dup {
			return nil, nil, fmt.Errorf("vrs: token %q used by both %s and %s", vt.Token, prev.Name, vt.Name)
		}
		byToken[vt.Token] = vt
		byCode[vt.Code] = vt
	}
	return byToken, byCode, nil
}

// Compact rewrites "[ga4gh:]<token>.<digest>" as "<code><digest>", e.g.
// "ga4gh:VA.abc123" becomes "1abc123". An identifier whose token is not a
// registered variation type fails with UnrecognizedVariationType.
func Compact(id string) (string, error) {
	rest := strings.TrimPrefix(id, Namespace+":")
	token, digest, ok := strings.Cut(rest, ".")
	if !ok {
		return "", unrecognized(id, rest)
	}
	vt, ok := typesByToken[token]
	if !ok {
		return "", unrecognized(id, token)
	}

	var sb strings.Builder
	sb.Grow(1 + len(digest))
	sb.WriteByte(vt.Code)
	sb.WriteString(digest)
	return sb.String(), nil
}

// Expand reverses Compact and always returns the namespaced form.
func Expand(compact string) (string, error) {
	if compact == "" {
		return "", unrecognized(compact, "")
	}
	vt, ok := typesByCode[compact[0]]
	if !ok {
		return "", unrecognized(compact, compact[:1])
	}
	return Namespace + ":" + vt.Token + "." + compact[1:], nil
}

func unrecognized(id, token string) error {
	return vrserrors.New(vrserrors.CodeUnrecognizedVariationType, "unrecognized variation type").
		WithContext("id", id).
		WithContext("token", token)
}
