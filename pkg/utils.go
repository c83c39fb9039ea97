package pkg

func Filter[T any](items []T, predicate func(T) bool) []T {
	filtered := []T{}
	for _, item := range items {
		if predicate(item) {
			filtered = append(filtered, item)
		}
	}
	return filtered
}

// NaturalLess reports whether a sorts before b in natural order:
// runs of digits compare by numeric value, everything else byte-wise.
// So "BGC2" < "BGC10" even though "BGC10" < "BGC2" lexicographically.
func NaturalLess(a, b string) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if isDigit(a[i]) && isDigit(b[j]) {
			ia, ja := i, j
			for ia < len(a) && isDigit(a[ia]) {
				ia++
			}
			for ja < len(b) && isDigit(b[ja]) {
				ja++
			}

			na := trimZeros(a[i:ia])
			nb := trimZeros(b[j:ja])
			if len(na) != len(nb) {
				return len(na) < len(nb)
			}
			if na != nb {
				return na < nb
			}

			i, j = ia, ja
			continue
		}

		if a[i] != b[j] {
			return a[i] < b[j]
		}
		i++
		j++
	}
	return len(a)-i < len(b)-j
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func trimZeros(s string) string {
	for len(s) > 1 && s[0] == '0' {
		s = s[1:]
	}
	return s
}
