package moderation

import (
	"log/slog"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestModerator(t *testing.T, words ...string) Moderator {
	t.Helper()
	mod, err := NewModerator(words, '*', logs.GetLoggerFromLevel(slog.LevelDebug))
	require.NoError(t, err)
	return mod
}

func TestModerator_Censor(t *testing.T) {
	mod := newTestModerator(t, "flopper", "tanking", "refball")

	tests := []struct {
		name     string
		input    string
		expected string
		words    []string
	}{
		{
			name:     "should mask a word and keep the spacing",
			input:    "That flopper again",
			expected: "That ******* again",
			words:    []string{"flopper"},
		},
		{
			name:     "should mask every occurrence",
			input:    "tanking tanking",
			expected: "******* *******",
			words:    []string{"tanking", "tanking"},
		},
		{
			name:     "should see through leet speak and inner punctuation",
			input:    "Pure R.3.f.b.4.l.l here",
			expected: "Pure ************* here",
			words:    []string{"refball"},
		},
		{
			name:     "should ignore case and separators",
			input:    "T-A-N-K-I-N-G season",
			expected: "************* season",
			words:    []string{"tanking"},
		},
		{
			name:     "should report words in order of appearance",
			input:    "Flopper vs tanking",
			expected: "******* vs *******",
			words:    []string{"flopper", "tanking"},
		},
		{
			name:     "should keep accented letters around a match",
			input:    "Qué flopper",
			expected: "Qué *******",
			words:    []string{"flopper"},
		},
		{
			name:     "should keep trailing punctuation",
			input:    "Stop the tanking.",
			expected: "Stop the *******.",
			words:    []string{"tanking"},
		},
		{
			name:     "should leave clean text alone",
			input:    "Pick & Roll is amazing",
			expected: "Pick & Roll is amazing",
		},
		{
			name: "should accept empty text",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			content, words := mod.Censor(tt.input)
			req.Equal(tt.expected, content)
			req.Equal(tt.words, words)
		})
	}
}

func TestModerator_Ignores_Noise_Only_Words(t *testing.T) {
	req := require.New(t)

	// Given a dictionary polluted with punctuation
	mod := newTestModerator(t, "...", ",,,", "", "refball")

	// Then real words are still censored
	content, words := mod.Censor("No refball tonight")
	req.Equal("No ******* tonight", content)
	req.Equal([]string{"refball"}, words)

	// And punctuation is not
	content, words = mod.Censor("Hello ...")
	req.Equal("Hello ...", content)
	req.Nil(words)
}

func TestModerator_Empty_Dictionary_Censors_Nothing(t *testing.T) {
	req := require.New(t)

	content, words := newTestModerator(t).Censor("That flopper again")

	req.Equal("That flopper again", content)
	req.Nil(words)
}

func TestDetectLanguage(t *testing.T) {
	req := require.New(t)

	req.Equal("es", DetectLanguage("Los Lakers ganaron el partido de anoche con una defensa increíble en el último cuarto"))
	req.Equal("en", DetectLanguage("The Lakers won last night's game with an incredible defense in the fourth quarter"))
}
