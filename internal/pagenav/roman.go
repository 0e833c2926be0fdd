package pagenav

import "strings"

var romanValues = map[byte]int{
	'i': 1,
	'v': 5,
	'x': 10,
	'l': 50,
	'c': 100,
	'd': 500,
	'm': 1000,
}

var romanNumerals = []struct {
	value  int
	symbol string
}{
	{1000, "m"}, {900, "cm"}, {500, "d"}, {400, "cd"},
	{100, "c"}, {90, "xc"}, {50, "l"}, {40, "xl"},
	{10, "x"}, {9, "ix"}, {5, "v"}, {4, "iv"}, {1, "i"},
}

// Deromanize decodes a roman numeral, case-insensitively. Strings that are not
// in canonical form ("iiii", "ic", "vx") are rejected.
func Deromanize(s string) (int, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}

	total := 0
	for i := 0; i < len(s); i++ {
		v, ok := romanValues[s[i]]
		if !ok {
			return 0, false
		}
		if i+1 < len(s) && v < romanValues[s[i+1]] {
			total -= v
		} else {
			total += v
		}
	}

	if total < 1 || Romanize(total) != s {
		return 0, false
	}
	return total, true
}

// Romanize encodes n (1..3999) as a lower-case roman numeral. Out-of-range
// values return "".
func Romanize(n int) string {
	if n < 1 || n > 3999 {
		return ""
	}
	var b strings.Builder
	for _, rn := range romanNumerals {
		for n >= rn.value {
			b.WriteString(rn.symbol)
			n -= rn.value
		}
	}
	return b.String()
}
