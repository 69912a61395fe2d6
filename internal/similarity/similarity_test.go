package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "strips grade qualifier",
			input: "Pottery Studio (Grades 3-5)",
			want:  "pottery studio",
		},
		{
			name:  "strips age qualifier",
			input: "Summer Art Camp (Ages 6-9)",
			want:  "summer art camp",
		},
		{
			name:  "strips singular grade",
			input: "Chess Club (Grade 4)",
			want:  "chess club",
		},
		{
			name:  "keeps non-qualifier parentheses",
			input: "Camp Wildwood (North Campus)",
			want:  "camp wildwood (north campus)",
		},
		{
			name:  "lowercases",
			input: "ROBOTICS LAB",
			want:  "robotics lab",
		},
		{
			name:  "trims whitespace",
			input: "  Swim Camp  ",
			want:  "swim camp",
		},
		{
			name:  "empty",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestScore(t *testing.T) {
	t.Run("qualifier variants are identical", func(t *testing.T) {
		got := Score("Pottery Studio (Grades 3-5)", "Pottery Studio (Grades K-2)")
		assert.InDelta(t, 1.0, got, 0.0001)
	})

	t.Run("empty side scores zero", func(t *testing.T) {
		assert.Zero(t, Score("", "anything"))
		assert.Zero(t, Score("anything", ""))
		assert.Zero(t, Score("", ""))
	})

	t.Run("identity scores one", func(t *testing.T) {
		for _, s := range []string{"x", "Summer Art Camp", "Camp Wildwood (North Campus)"} {
			assert.InDelta(t, 1.0, Score(s, s), 0.0001)
		}
	})

	t.Run("near match clears threshold", func(t *testing.T) {
		got := Score("Summer Art Camp", "Summer Arts Camp")
		assert.Greater(t, got, DefaultThreshold)
	})

	t.Run("unrelated names stay below threshold", func(t *testing.T) {
		got := Score("Summer Art Camp", "Robotics Intensive")
		assert.Less(t, got, DefaultThreshold)
	})

	t.Run("symmetric", func(t *testing.T) {
		a, b := "Junior Lifeguards", "Junior Lifeguard Camp"
		assert.InDelta(t, Score(a, b), Score(b, a), 0.0001)
	})
}

func TestMatch(t *testing.T) {
	assert.True(t, Match("Summer Art Camp", "Summer Art Camp (Ages 6-9)"))
	assert.False(t, Match("Summer Art Camp", "Winter Ski Trip"))
}
