package features

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTokens(t *testing.T) {
	tokens := NormalizeTokens("Samsonite Pro-DLX, Serial: SN12345678!")
	assert.Equal(t, []string{"samsonite", "pro", "dlx", "serial", "sn12345678"}, tokens)
}

func TestNormalizeTokensDropsShortAndDuplicates(t *testing.T) {
	tokens := NormalizeTokens("a ab ab b the the x")
	assert.Equal(t, []string{"ab", "the"}, tokens)
}

func TestNormalizeTokensEmpty(t *testing.T) {
	assert.Empty(t, NormalizeTokens(""))
	assert.Empty(t, NormalizeTokens("!!! ??? ."))
}

func TestExtractIdentifiers(t *testing.T) {
	cases := []struct {
		name   string
		tokens []string
		want   []string
	}{
		{"plate", []string{"black", "ab123cd", "leather"}, []string{"ab123cd"}},
		{"serial", []string{"sn12345678"}, []string{"sn12345678"}},
		{"hyphenated serial", []string{"xk-9912-aa3"}, []string{"xk-9912-aa3"}},
		{"plain words", []string{"black", "backpack", "leather"}, nil},
		{"digits only", []string{"123456"}, nil},
		{"letters only", []string{"abcdefgh"}, nil},
		{"too short", []string{"a1b2"}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractIdentifiers(tc.tokens))
		})
	}
}

func TestIsSerialLike(t *testing.T) {
	assert.True(t, IsSerialLike("sn12345678"))
	assert.False(t, IsSerialLike("ab123cd"))
}

func TestCTCDecode(t *testing.T) {
	numClasses := len(ocrCharset) + 1
	classOf := func(ch byte) int {
		for i := 0; i < len(ocrCharset); i++ {
			if ocrCharset[i] == ch {
				return i + 1
			}
		}
		t.Fatalf("char %q not in charset", ch)
		return 0
	}

	// Timesteps spelling "aab" with blanks and repeats:
	// a a blank a b b  ->  "aab"
	steps := []int{classOf('a'), classOf('a'), 0, classOf('a'), classOf('b'), classOf('b')}
	logits := make([]float32, len(steps)*numClasses)
	for t, c := range steps {
		for i := 0; i < numClasses; i++ {
			logits[t*numClasses+i] = -10
		}
		logits[t*numClasses+c] = 10
	}

	assert.Equal(t, "aab", ctcDecode(logits, len(steps), numClasses))
}

func TestCTCDecodeAllBlanks(t *testing.T) {
	numClasses := len(ocrCharset) + 1
	logits := make([]float32, 10*numClasses)
	for ts := 0; ts < 10; ts++ {
		for i := 0; i < numClasses; i++ {
			logits[ts*numClasses+i] = -10
		}
		logits[ts*numClasses] = 10
	}
	assert.Equal(t, "", ctcDecode(logits, 10, numClasses))
}
