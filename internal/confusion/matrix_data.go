package confusion

// matrix holds raw confusion counts collected from recognizer
// evaluation runs. Row = produced character, column = recognized
// character, indexed per charToIdx.
var matrix = [alphabetSize][alphabetSize]int{
	{434, 12, 1, 0, 1, 1, 0, 2, 0, 0, 2, 0, 9, 2, 2, 0, 0, 0, 0, 2, 0, 0, 0, 3, 8, 1, 0, 0, 0, 4, 0, 0, 0, 1, 1, 0, 20},
	{2, 681, 19, 0, 0, 0, 3, 2, 0, 0, 18, 2, 0, 48, 1, 0, 1, 0, 2, 0, 3, 0, 0, 7, 2, 1, 0, 1, 3, 10, 0, 0, 1, 7, 1, 0, 3},
	{5, 129, 542, 11, 0, 3, 11, 3, 2, 1, 6, 2, 1, 9, 2, 0, 1, 0, 1, 0, 25, 3, 0, 4, 2, 0, 0, 0, 7, 10, 8, 40, 0, 0, 1, 0, 1},
	{5, 20, 8, 1100, 3, 12, 0, 2, 2, 3, 3, 0, 1, 8, 0, 0, 0, 0, 0, 0, 7, 9, 0, 0, 0, 0, 1, 0, 0, 2, 0, 2, 0, 0, 0, 0, 5},
	{4, 1, 1, 2, 1272, 23, 0, 1, 0, 1, 0, 10, 0, 1, 1, 1, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 3},
	{1, 1, 0, 2, 19, 1862, 0, 1, 4, 2, 1, 1, 0, 1, 0, 0, 0, 0, 0, 1, 2, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0},
	{7, 13, 24, 2, 7, 10, 680, 9, 8, 0, 7, 0, 5, 1, 1, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 2, 3, 5, 44, 3, 1, 1, 2},
	{9, 10, 5, 2, 40, 7, 7, 1018, 9, 3, 12, 0, 7, 0, 0, 0, 0, 0, 8, 0, 1, 0, 0, 1, 3, 0, 0, 0, 0, 3, 0, 4, 0, 0, 0, 0, 6},
	{4, 3, 1, 2, 26, 13, 4, 25, 1049, 21, 2, 1, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 1, 6, 0, 0, 0, 0, 4, 0, 0, 0, 0, 1, 1, 1},
	{5, 3, 1, 2, 3, 12, 1, 1, 1, 1138, 0, 1, 1, 0, 0, 22, 0, 0, 0, 0, 7, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
	{3, 19, 2, 3, 1, 2, 0, 5, 0, 2, 954, 7, 3, 3, 0, 0, 0, 0, 1, 0, 8, 0, 0, 0, 0, 0, 0, 0, 0, 5, 0, 0, 0, 2, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1772, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{10, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1685, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 16},
	{0, 21, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1746, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 1, 0, 1, 0, 0, 0, 0, 0},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 63, 0, 0, 0, 0, 0, 0, 0, 0, 1, 2, 0, 1, 0, 0, 5, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 31, 0, 10, 0, 0, 0, 1740, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1762, 3, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 2, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1770, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 3},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1700, 4, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{4, 2, 0, 0, 1, 0, 0, 2, 0, 0, 1, 0, 0, 0, 0, 0, 2, 0, 4, 1360, 0, 0, 0, 1, 0, 1, 0, 0, 0, 3, 0, 0, 0, 1, 0, 2, 4},
	{0, 1, 2, 0, 0, 3, 0, 1, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1670, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1547, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0},
	{6, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 3, 0, 0, 0, 0, 0, 0, 0, 16, 3, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 2},
	{2, 2, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 2, 0, 0, 0, 0, 0, 1, 0, 5, 1509, 0, 0, 0, 0, 2, 1, 0, 0, 0, 0, 0, 0, 0},
	{79, 2, 0, 0, 0, 0, 0, 0, 2, 0, 1, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 36, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0},
	{0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1760, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1, 0},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1761, 0, 1, 4, 0, 0, 0, 0, 0, 0, 0},
	{0, 2, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 4, 0, 0, 0, 0, 0, 0, 852, 0, 0, 12, 5, 0, 0, 0, 0, 0},
	{9, 12, 0, 0, 0, 0, 0, 1, 0, 0, 4, 0, 6, 2, 3, 0, 0, 0, 0, 0, 0, 0, 0, 12, 10, 0, 3, 0, 19, 6, 0, 0, 0, 0, 0, 0, 1},
	{4, 11, 0, 0, 0, 3, 0, 1, 1, 1, 10, 0, 0, 2, 1, 0, 0, 0, 0, 0, 1, 0, 0, 3, 3, 0, 1, 0, 0, 394, 0, 0, 0, 1, 1, 0, 0},
	{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1553, 0, 0, 0, 0, 0, 0},
	{0, 0, 14, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 12, 0, 0, 0, 0, 0, 0, 2, 0, 0, 0, 0, 0, 0, 2, 0, 0, 6, 852, 1, 0, 0, 0, 0},
	{0, 0, 0, 0, 0, 0, 8, 0, 0, 9, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1738, 0, 0, 0, 0},
	{1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 0, 0, 1765, 0, 0, 1},
	{3, 6, 3, 0, 0, 3, 0, 2, 3, 2, 15, 0, 0, 0, 3, 0, 0, 0, 0, 0, 3, 0, 0, 0, 1, 0, 0, 0, 0, 4, 0, 0, 0, 1, 97, 0, 5},
	{2, 2, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 1, 0, 0, 0, 0, 0, 0, 0, 1, 1499, 16},
	{1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 1, 881},
}

// knownPairs lists character pairs that signers confuse in practice
// even where the matrix counts are near zero. Keys are the two
// uppercase characters concatenated; entries are symmetric.
var knownPairs = buildKnownPairs([][2]byte{
	// digit <-> letter
	{'W', '6'}, {'W', '3'}, {'V', '2'}, {'F', '9'}, {'D', '1'}, {'O', '0'},
	// compact fist
	{'A', 'T'}, {'A', 'E'}, {'E', 'S'}, {'E', 'T'}, {'E', 'N'}, {'E', 'M'},
	{'T', 'M'}, {'S', 'N'}, {'S', 'T'}, {'N', 'M'},
	// orientation and mirror
	{'H', 'U'}, {'H', 'V'}, {'H', '7'}, {'R', 'U'}, {'R', 'V'},
	{'U', 'V'}, {'U', '7'}, {'V', '7'},
	// circle shapes
	{'C', 'O'}, {'C', '0'},
	// motion-dependent
	{'J', 'Z'}, {'J', 'I'}, {'Z', '1'},
})

func buildKnownPairs(pairs [][2]byte) map[string]struct{} {
	m := make(map[string]struct{}, len(pairs)*2)
	for _, p := range pairs {
		m[string(p[0])+string(p[1])] = struct{}{}
		m[string(p[1])+string(p[0])] = struct{}{}
	}
	return m
}
