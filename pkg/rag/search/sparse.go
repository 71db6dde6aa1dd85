package search

import (
	"math"
	"strings"
	"unicode"
)

// BM25 parameters, Okapi defaults.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Tokenize splits text into lowercase scoring terms. Runs of latin letters
// and digits form one token each; runs of Han characters emit character
// bigrams so Chinese text matches without a segmenter. A lone Han character
// is kept as a single token.
func Tokenize(text string) []string {
	var tokens []string
	var word []rune
	var han []rune

	flushWord := func() {
		if len(word) > 0 {
			tokens = append(tokens, strings.ToLower(string(word)))
			word = word[:0]
		}
	}
	flushHan := func() {
		if len(han) == 1 {
			tokens = append(tokens, string(han))
		} else {
			for i := 0; i+1 < len(han); i++ {
				tokens = append(tokens, string(han[i:i+2]))
			}
		}
		han = han[:0]
	}

	for _, r := range text {
		switch {
		case r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9':
			if len(han) > 0 {
				flushHan()
			}
			word = append(word, r)
		case unicode.Is(unicode.Han, r):
			flushWord()
			han = append(han, r)
		default:
			flushWord()
			if len(han) > 0 {
				flushHan()
			}
		}
	}
	flushWord()
	if len(han) > 0 {
		flushHan()
	}
	return tokens
}

// bm25 scores queries against a fixed corpus of tokenised documents. All
// statistics (document frequency, average length) are local to that corpus.
type bm25 struct {
	termFreq  []map[string]int
	docLen    []float64
	avgDocLen float64
	docFreq   map[string]int
	size      int
}

func newBM25(corpus [][]string) *bm25 {
	s := &bm25{
		termFreq: make([]map[string]int, len(corpus)),
		docLen:   make([]float64, len(corpus)),
		docFreq:  make(map[string]int),
		size:     len(corpus),
	}
	var total float64
	for i, terms := range corpus {
		freq := make(map[string]int, len(terms))
		for _, t := range terms {
			freq[t]++
		}
		s.termFreq[i] = freq
		s.docLen[i] = float64(len(terms))
		total += s.docLen[i]
		for t := range freq {
			s.docFreq[t]++
		}
	}
	if s.size > 0 {
		s.avgDocLen = total / float64(s.size)
	}
	return s
}

// Scores returns one score per corpus document for the query terms. Scores
// are non-negative; documents sharing no term with the query score zero.
func (s *bm25) Scores(query []string) []float64 {
	scores := make([]float64, s.size)
	if s.avgDocLen == 0 {
		return scores
	}
	for _, term := range query {
		df := s.docFreq[term]
		if df == 0 {
			continue
		}
		idf := math.Log(1 + (float64(s.size)-float64(df)+0.5)/(float64(df)+0.5))
		for i := range scores {
			tf := float64(s.termFreq[i][term])
			if tf == 0 {
				continue
			}
			norm := tf + bm25K1*(1-bm25B+bm25B*s.docLen[i]/s.avgDocLen)
			scores[i] += idf * tf * (bm25K1 + 1) / norm
		}
	}
	return scores
}
