// Package sequtil holds small sequence helpers shared by the pipeline
// stages: reverse complement, mean q-score and run counting.
package sequtil

import "math"

var complementTable = func() [256]byte {
	var t [256]byte
	for i := range t {
		t[i] = byte(i)
	}
	pairs := []struct{ a, b byte }{
		{'A', 'T'}, {'C', 'G'}, {'a', 't'}, {'c', 'g'},
	}
	for _, p := range pairs {
		t[p.a], t[p.b] = p.b, p.a
	}
	return t
}()

// ReverseComplement returns the reverse complement of a nucleotide
// sequence. Case is preserved; non-ACGT bytes pass through unchanged.
func ReverseComplement(seq string) string {
	if len(seq) == 0 {
		return ""
	}
	out := make([]byte, len(seq))
	for i := 0; i < len(seq); i++ {
		out[i] = complementTable[seq[len(seq)-1-i]]
	}
	return string(out)
}

// Lookup table avoids calling math.Pow per quality character, which
// otherwise dominates this function.
var charToErrorTable = func() [256]float64 {
	var t [256]float64
	for q := 33; q <= 127; q++ {
		t[q] = math.Pow(10.0, -float64(q-33)/10.0)
	}
	return t
}()

// MeanQScore computes the mean q-score of a phred+33 quality string,
// clamped to [1, 50]. An empty string scores 0.
func MeanQScore(quality string) float64 {
	if len(quality) == 0 {
		return 0
	}
	totalError := 0.0
	for i := 0; i < len(quality); i++ {
		totalError += charToErrorTable[quality[i]]
	}
	meanError := totalError / float64(len(quality))
	score := -10.0 * math.Log10(meanError)
	return math.Min(50.0, math.Max(1.0, score))
}

// CountTrailing returns the length of the run of c at the end of seq.
func CountTrailing(seq string, c byte) int {
	n := 0
	for i := len(seq) - 1; i >= 0; i-- {
		if seq[i] != c {
			break
		}
		n++
	}
	return n
}

// CountLeading returns the length of the run of c at the start of seq.
func CountLeading(seq string, c byte) int {
	n := 0
	for i := 0; i < len(seq); i++ {
		if seq[i] != c {
			break
		}
		n++
	}
	return n
}

// IsACGT reports whether b is an unambiguous upper-case base.
func IsACGT(b byte) bool { return b == 'A' || b == 'C' || b == 'G' || b == 'T' }

// IsUnambiguous reports whether every byte of seq is an unambiguous base.
func IsUnambiguous(seq string) bool {
	for i := 0; i < len(seq); i++ {
		if !IsACGT(seq[i]) {
			return false
		}
	}
	return true
}
