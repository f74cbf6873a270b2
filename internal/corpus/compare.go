package corpus

import (
	"fmt"

	"golang.org/x/text/unicode/runenames"
)

// OpKind is the kind of a code point diff operation.
type OpKind string

const (
	OpReplace OpKind = "replace"
	OpDelete  OpKind = "delete"
	OpInsert  OpKind = "insert"
)

// DiffOp describes one differing span. A covers [A1,A2) of the first string
// and B covers [B1,B2) of the second, both in rune offsets.
type DiffOp struct {
	Kind   OpKind
	A1, A2 int
	B1, B2 int
	A      []rune
	B      []rune
}

// Mismatch is one index where two corpora normalize differently.
type Mismatch struct {
	Index int
	A, B  Verse
	Ops   []DiffOp
}

// Comparison is the result of Compare.
type Comparison struct {
	Total      int
	Matches    int
	Mismatches []Mismatch
}

// Rate returns the fraction of compared entries that matched.
func (c Comparison) Rate() float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Matches) / float64(c.Total)
}

// Compare walks both corpora index by index over the shorter length and
// reports every position whose normalized texts differ.
func Compare(a, b *Corpus) Comparison {
	total := a.Len()
	if b.Len() < total {
		total = b.Len()
	}

	cmp := Comparison{Total: total}
	for i := 0; i < total; i++ {
		na, nb := a.Normalized(i), b.Normalized(i)
		if na == nb {
			cmp.Matches++
			continue
		}
		cmp.Mismatches = append(cmp.Mismatches, Mismatch{
			Index: i,
			A:     a.Verse(i),
			B:     b.Verse(i),
			Ops:   CodePointDiff(na, nb),
		})
	}
	return cmp
}

// CodePointDiff returns the non-equal spans between a and b.
func CodePointDiff(a, b string) []DiffOp {
	ra, rb := []rune(a), []rune(b)

	prefix := 0
	for prefix < len(ra) && prefix < len(rb) && ra[prefix] == rb[prefix] {
		prefix++
	}
	suffix := 0
	for suffix < len(ra)-prefix && suffix < len(rb)-prefix &&
		ra[len(ra)-1-suffix] == rb[len(rb)-1-suffix] {
		suffix++
	}

	midA := ra[prefix : len(ra)-suffix]
	midB := rb[prefix : len(rb)-suffix]
	if len(midA) == 0 && len(midB) == 0 {
		return nil
	}

	// LCS table over the differing middle only.
	n, m := len(midA), len(midB)
	lcs := make([][]int, n+1)
	for i := range lcs {
		lcs[i] = make([]int, m+1)
	}
	for i := n - 1; i >= 0; i-- {
		for j := m - 1; j >= 0; j-- {
			if midA[i] == midB[j] {
				lcs[i][j] = lcs[i+1][j+1] + 1
			} else if lcs[i+1][j] >= lcs[i][j+1] {
				lcs[i][j] = lcs[i+1][j]
			} else {
				lcs[i][j] = lcs[i][j+1]
			}
		}
	}

	var ops []DiffOp
	var cur *DiffOp
	closeOp := func() {
		if cur == nil {
			return
		}
		switch {
		case cur.A1 == cur.A2:
			cur.Kind = OpInsert
		case cur.B1 == cur.B2:
			cur.Kind = OpDelete
		default:
			cur.Kind = OpReplace
		}
		cur.A = ra[cur.A1:cur.A2]
		cur.B = rb[cur.B1:cur.B2]
		ops = append(ops, *cur)
		cur = nil
	}
	open := func(i, j int) {
		if cur == nil {
			cur = &DiffOp{A1: prefix + i, A2: prefix + i, B1: prefix + j, B2: prefix + j}
		}
	}

	i, j := 0, 0
	for i < n || j < m {
		switch {
		case i < n && j < m && midA[i] == midB[j]:
			closeOp()
			i++
			j++
		case j < m && (i == n || lcs[i][j+1] >= lcs[i+1][j]):
			open(i, j)
			j++
			cur.B2 = prefix + j
		default:
			open(i, j)
			i++
			cur.A2 = prefix + i
		}
	}
	closeOp()
	return ops
}

// DescribeRune formats r as its literal, code point and Unicode name.
func DescribeRune(r rune) string {
	name := runenames.Name(r)
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("%q U+%04X %s", r, r, name)
}
