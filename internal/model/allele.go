// Package model defines core data structures for vrsindex.
package model

import "fmt"

// VariantLocus identifies the record an allele came from and the input
// source it was read from.
type VariantLocus struct {
	// Chromosome is the reference sequence name as written in the VCF.
	Chromosome string

	// Position is the 1-based POS of the record.
	Position uint32

	// SourceID distinguishes input sources sharing one output file.
	SourceID uint8
}

// String renders the locus the way it appears in the output file.
func (l VariantLocus) String() string {
	return fmt.Sprintf("%s-%d-%d", l.Chromosome, l.Position, l.SourceID)
}

// VrsAlleleAttributes holds the VRS annotation values for one allele.
// Instances are built per record and discarded once written.
type VrsAlleleAttributes struct {
	ID    string
	Start int32
	End   int32

	// State is the VRS literal sequence state. Extracted but not persisted.
	State string
}
