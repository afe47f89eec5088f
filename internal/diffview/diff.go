// Package diffview renders a word-level diff between original and
// transformed text as annotated HTML, for human review of an anonymization
// run. Presentation only; it never alters either input.
package diffview

import (
	"html"
	"strings"
)

// Tokenize splits s on whitespace boundaries, keeping whitespace runs as
// their own tokens so that concatenating the tokens reproduces s exactly.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	var tokens []string
	start := 0
	inSpace := isSpace(s[0])
	for i := 1; i < len(s); i++ {
		if isSpace(s[i]) != inSpace {
			tokens = append(tokens, s[start:i])
			start = i
			inSpace = !inSpace
		}
	}
	tokens = append(tokens, s[start:])
	return tokens
}

func isSpace(b byte) bool {
	switch b {
	case ' ', '\t', '\n', '\r', '\v', '\f':
		return true
	}
	return false
}

// HTML computes a longest-common-subsequence alignment of the two token
// sequences and emits matched tokens verbatim, removed tokens wrapped in
// <span class="sm-del">, and inserted tokens wrapped in <span class="sm-ins">.
// On score ties the backtrack prefers match, then deletion, then insertion.
// All tokens are HTML-escaped before wrapping.
func HTML(original, transformed string) string {
	a := Tokenize(original)
	b := Tokenize(transformed)
	n, m := len(a), len(b)

	// dp[i][j] = LCS length of a[i:] and b[j:]
	dp := make([][]int, n+1)
	for i := range dp {
		dp[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if a[i] == b[j] {
				dp[i][j] = dp[i+1][j+1] + 1
			} else if dp[i+1][j] >= dp[i][j+1] {
				dp[i][j] = dp[i+1][j]
			} else {
				dp[i][j] = dp[i][j+1]
			}
		}
	}

	var out strings.Builder
	i, j := 0, 0
	for i < n && j < m {
		switch {
		case a[i] == b[j]:
			out.WriteString(html.EscapeString(a[i]))
			i++
			j++
		case dp[i+1][j] >= dp[i][j+1]:
			writeDel(&out, a[i])
			i++
		default:
			writeIns(&out, b[j])
			j++
		}
	}
	for ; i < n; i++ {
		writeDel(&out, a[i])
	}
	for ; j < m; j++ {
		writeIns(&out, b[j])
	}
	return out.String()
}

func writeDel(out *strings.Builder, token string) {
	out.WriteString(`<span class="sm-del">`)
	out.WriteString(html.EscapeString(token))
	out.WriteString(`</span>`)
}

func writeIns(out *strings.Builder, token string) {
	out.WriteString(`<span class="sm-ins">`)
	out.WriteString(html.EscapeString(token))
	out.WriteString(`</span>`)
}
