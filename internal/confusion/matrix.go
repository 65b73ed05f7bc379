// Package confusion scores candidate spelling aliases against the
// empirical fingerspelling confusion matrix. The matrix counts how
// often the recognizer outputs character j when the signer produced
// character i, over the alphabet 0-9, A-Z and the pause glyph "_".
package confusion

import "strings"

// Alphabet index layout: 0-9 digits, 10-35 letters A-Z, 36 pause.
const alphabetSize = 37

// charToIdx maps a character to its matrix row. Returns -1 for
// characters outside the fingerspelling alphabet.
func charToIdx(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'A' && c <= 'Z':
		return int(c-'A') + 10
	case c >= 'a' && c <= 'z':
		return int(c-'a') + 10
	case c == '_':
		return 36
	}
	return -1
}

// idxToChar is the inverse of charToIdx.
func idxToChar(idx int) byte {
	switch {
	case idx >= 0 && idx <= 9:
		return byte('0' + idx)
	case idx >= 10 && idx <= 35:
		return byte('A' + idx - 10)
	case idx == 36:
		return '_'
	}
	return '?'
}

// IsKnownPair reports whether two characters form an empirically
// observed confusion pair. These pairs may have low matrix counts but
// occur in practice, so scoring floors them.
func IsKnownPair(a, b byte) bool {
	pa := strings.ToUpper(string(a))
	pb := strings.ToUpper(string(b))
	_, ok := knownPairs[pa+pb]
	return ok
}

// Prob returns the row-normalized confusion probability of the
// recognizer emitting b when the signer produced a.
func Prob(a, b byte) float64 {
	ia := charToIdx(a)
	ib := charToIdx(b)
	if ia < 0 || ib < 0 {
		return 0
	}
	total := 0
	for _, n := range matrix[ia] {
		total += n
	}
	if total == 0 {
		return 0
	}
	return float64(matrix[ia][ib]) / float64(total)
}
