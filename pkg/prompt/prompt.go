// Package prompt builds the pronunciation-coaching instruction sent alongside the audio.
package prompt

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	HeaderPhraseInput     = "Phrase (Input)"
	HeaderPhraseDetected  = "Phrase (Detected)"
	HeaderComparison      = "Comparison"
	HeaderProblemAreas    = "Problem Areas"
	HeaderRecommendations = "Recommendations"
	HeaderRating          = "Overall Pronunciation Rating"

	// MissingPhraseResponse is what the model is told to answer when the phrase is absent.
	MissingPhraseResponse = "The audio does not contain the phrase."
)

const template = `
You are a native speaker and expert linguist of the {language} language, specializing in pronunciation coaching. Your task is to analyze an audio recording of spoken {language}, compare it with the reference phrase, and provide a detailed pronunciation assessment.

Input:
1. An audio file of spoken {language}.
2. A word, phrase, or sentence to compare with the audio.

Your task:
- Detect the phrase in the audio.
- Compare pronunciation to the reference.
- Identify errors in vowel sounds, consonant articulation, stress, intonation, linking, and missing words.
- Provide recommendations for improvement.
- Rate the overall pronunciation on a scale from 0% to 100%.

If the audio does not contain the input phrase, say: "` + MissingPhraseResponse + `"

Your Output Format:
` + HeaderPhraseInput + `: {phrase}
` + HeaderPhraseDetected + `: [Detected phrase from audio]

` + HeaderComparison + `:
[Similarities/differences]

` + HeaderProblemAreas + `:
[List and describe pronunciation issues]

` + HeaderRecommendations + ` for Improvement:
[Personalized guidance per issue]

` + HeaderRating + `:
[XX]%
`

// SectionHeaders returns the output sections in the order the model must produce them.
func SectionHeaders() []string {
	return []string{
		HeaderPhraseInput,
		HeaderPhraseDetected,
		HeaderComparison,
		HeaderProblemAreas,
		HeaderRecommendations,
		HeaderRating,
	}
}

// Build substitutes language and phrase into the template verbatim. Substitution is a
// single pass, so placeholder text inside either value is not expanded again.
func Build(language string, phrase string) string {
	return strings.NewReplacer(
		"{language}", language,
		"{phrase}", phrase,
	).Replace(template)
}

var ratingPattern = regexp.MustCompile(`(?i)` + regexp.QuoteMeta(HeaderRating) + `\s*:?\s*\[?\s*(\d{1,3})(?:\.\d+)?\s*\]?\s*%`)

// ParseRating extracts the percentage following the rating header, clamped to 0..100.
func ParseRating(text string) (int, bool) {
	match := ratingPattern.FindStringSubmatch(text)
	if len(match) < 2 {
		return 0, false
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return 0, false
	}
	if value > 100 {
		value = 100
	}
	return value, true
}
