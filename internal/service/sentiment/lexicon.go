// internal/service/sentiment/lexicon.go

package sentiment

import (
	"math"
	"strings"

	"github.com/jdkato/prose/v2"

	"streampulse/internal/domain/reaction"
)

// ModelLexicon tags scores produced by the lexicon analyzer
const ModelLexicon = "lexicon"

const (
	// Compound scores at or beyond these bounds are polar
	positiveThreshold = 0.05
	negativeThreshold = -0.05

	normalizeAlpha  = 15.0
	negationScalar  = -0.74
	boosterIncrease = 0.293
	exclaimIncrease = 0.292
	maxExclaims     = 4
)

var valence = map[string]float64{
	"amazing": 3.1, "awesome": 3.1, "beautiful": 2.9, "best": 3.2, "binge": 1.2,
	"bingeworthy": 2.5, "brilliant": 2.8, "captivating": 2.6, "charming": 2.3,
	"clever": 1.9, "cool": 1.3, "enjoy": 2.2, "enjoyed": 2.3, "entertaining": 2.2,
	"epic": 2.4, "excellent": 2.7, "excited": 2.2, "fantastic": 2.6, "favorite": 2.0,
	"fun": 2.3, "funny": 1.9, "gem": 2.2, "good": 1.9, "gorgeous": 2.9, "great": 3.1,
	"happy": 2.7, "hilarious": 2.5, "incredible": 2.8, "interesting": 1.7, "like": 1.5,
	"liked": 1.8, "love": 3.2, "loved": 2.9, "masterpiece": 3.3, "nice": 1.8,
	"perfect": 2.7, "recommend": 1.5, "solid": 1.4, "stunning": 2.8, "superb": 3.1,
	"thrilling": 2.5, "top": 0.8, "wonderful": 2.7, "wow": 2.8, "yes": 1.7,

	"annoying": -1.9, "awful": -2.0, "bad": -2.5, "bland": -1.4, "boring": -1.3,
	"broken": -1.6, "cancel": -1.0, "cancelled": -1.3, "cheap": -1.0, "confusing": -1.3,
	"cringe": -2.0, "disappointed": -1.9, "disappointing": -2.2, "dislike": -1.6,
	"dull": -1.7, "flop": -1.9, "garbage": -2.3, "hate": -2.7, "hated": -3.2,
	"horrible": -2.5, "lame": -1.8, "mess": -1.5, "mediocre": -1.0, "meh": -0.8,
	"overrated": -1.6, "pointless": -1.6, "poor": -2.1, "predictable": -0.9,
	"ruined": -2.4, "sad": -2.1, "slow": -0.8, "stupid": -2.4, "terrible": -2.1,
	"trash": -2.4, "ugly": -2.3, "unwatchable": -2.8, "waste": -1.8, "weak": -1.9,
	"worse": -2.1, "worst": -3.1, "wtf": -2.8,
}

var boosters = map[string]float64{
	"absolutely": boosterIncrease, "completely": boosterIncrease, "extremely": boosterIncrease,
	"incredibly": boosterIncrease, "really": boosterIncrease, "so": boosterIncrease,
	"super": boosterIncrease, "totally": boosterIncrease, "truly": boosterIncrease,
	"very": boosterIncrease,
	"barely": -boosterIncrease, "hardly": -boosterIncrease, "kinda": -boosterIncrease,
	"slightly": -boosterIncrease, "somewhat": -boosterIncrease,
}

var negations = map[string]bool{
	"not": true, "no": true, "never": true, "n't": true, "nothing": true, "nobody": true,
	"none": true, "neither": true, "nor": true, "cannot": true, "without": true,
	"dont": true, "didnt": true, "doesnt": true, "isnt": true, "wasnt": true, "aint": true,
}

// Analyzer scores text with a valence lexicon over prose tokens
type Analyzer struct{}

// NewAnalyzer creates a new lexicon analyzer
func NewAnalyzer() *Analyzer {
	return &Analyzer{}
}

// Analyze returns the sentiment of text; text without lexicon words is neutral
func (a *Analyzer) Analyze(text string) reaction.Sentiment {
	tokens := tokenize(text)

	scores := make([]float64, len(tokens))
	butAt := -1
	for i, tok := range tokens {
		if tok == "but" && butAt < 0 {
			butAt = i
		}

		v, ok := valence[tok]
		if !ok {
			continue
		}

		for back := 1; back <= 3 && i-back >= 0; back++ {
			prev := tokens[i-back]
			if b, ok := boosters[prev]; ok {
				// Further boosters weigh less
				scale := 1.0 - 0.05*float64(back-1)
				if v < 0 {
					v -= b * scale
				} else {
					v += b * scale
				}
			}
			if negations[prev] {
				v *= negationScalar
			}
		}

		scores[i] = v
	}

	// The clause after "but" dominates the one before it
	if butAt >= 0 {
		for i := range scores {
			if i < butAt {
				scores[i] *= 0.5
			} else if i > butAt {
				scores[i] *= 1.5
			}
		}
	}

	var sum, posSum, negSum float64
	neutral := 0
	for i, s := range scores {
		sum += s
		switch {
		case s > 0:
			posSum += s + 1
		case s < 0:
			negSum += s - 1
		default:
			if tokens[i] != "but" {
				neutral++
			}
		}
	}

	if sum != 0 {
		exclaims := math.Min(float64(strings.Count(text, "!")), maxExclaims)
		if sum > 0 {
			sum += exclaims * exclaimIncrease
		} else {
			sum -= exclaims * exclaimIncrease
		}
	}

	compound := clamp(sum/math.Sqrt(sum*sum+normalizeAlpha), -1, 1)

	var confidence float64
	if total := posSum + math.Abs(negSum) + float64(neutral); total > 0 {
		pos := posSum / total
		neg := math.Abs(negSum) / total
		neu := float64(neutral) / total
		confidence = clamp(math.Max(pos, math.Max(neg, neu)), 0, 1)
	}

	return reaction.Sentiment{
		Polarity:   compound,
		Class:      Classify(compound),
		Confidence: confidence,
		Model:      ModelLexicon,
	}
}

// Classify maps a compound polarity onto a sentiment class
func Classify(compound float64) reaction.Class {
	switch {
	case compound >= positiveThreshold:
		return reaction.ClassPositive
	case compound <= negativeThreshold:
		return reaction.ClassNegative
	default:
		return reaction.ClassNeutral
	}
}

func tokenize(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	doc, err := prose.NewDocument(
		text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
	)
	if err != nil {
		return strings.Fields(strings.ToLower(text))
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		t := strings.ToLower(strings.Trim(tok.Text, `"'#@.,;:?!()[]{}`))
		if t == "" {
			continue
		}
		tokens = append(tokens, t)
	}

	return tokens
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
