package index

import "github.com/hyperjump/kioku/pkg/utils"

// Vectorize maps text onto the frozen vocabulary: raw term counts multiplied
// by the matching IDF weight, then L2-normalized. Terms outside the
// vocabulary are dropped, never added. The same function runs at build time
// and at query time, which is what makes scores reproducible after a reload.
func Vectorize(text string, vocabulary map[string]int, idf []float64) []float64 {
	vec := make([]float64, len(idf))
	for _, term := range Tokenize(text) {
		if col, ok := vocabulary[term]; ok {
			vec[col] += idf[col]
		}
	}
	utils.NormalizeL2(vec)
	return vec
}
