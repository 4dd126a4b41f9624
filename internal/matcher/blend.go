package matcher

import (
	"math"
	"strings"

	"atsmatch/internal/types"
)

type weights struct {
	semantic float64
	keyword  float64
}

var modeWeights = map[types.Mode]weights{
	types.ModeSemantic: {semantic: 0.7, keyword: 0.3},
	types.ModeStrict:   {semantic: 0.2, keyword: 0.8},
}

// NormalizeMode lowercases and trims mode; anything but "strict" is semantic.
func NormalizeMode(mode string) types.Mode {
	if types.Mode(strings.ToLower(strings.TrimSpace(mode))) == types.ModeStrict {
		return types.ModeStrict
	}
	return types.ModeSemantic
}

// Blend combines the two scores under mode's weights, rounding half to even.
func Blend(mode types.Mode, semanticScore, keywordScore int) int {
	w, ok := modeWeights[mode]
	if !ok {
		w = modeWeights[types.ModeSemantic]
	}
	// explicit float64 conversions keep the compiler from fusing into an FMA
	blended := float64(w.semantic*float64(semanticScore)) + float64(w.keyword*float64(keywordScore))
	return int(math.RoundToEven(blended))
}
