package personality

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Defaults(t *testing.T) {
	p := New()
	assert.Equal(t, Traits{
		Openness:          0.5,
		Conscientiousness: 0.5,
		Extraversion:      0.5,
		Agreeableness:     0.5,
		Neuroticism:       0.5,
	}, p.Traits())
}

func TestProfile_SettersClamp(t *testing.T) {
	tests := []struct {
		name     string
		input    float64
		expected float64
	}{
		{"in range", 0.73, 0.73},
		{"lower bound", 0, 0},
		{"upper bound", 1, 1},
		{"below range", -0.4, 0},
		{"above range", 3.2, 1},
		{"negative infinity", math.Inf(-1), 0},
		{"positive infinity", math.Inf(1), 1},
		{"NaN", math.NaN(), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New()
			p.SetOpenness(tt.input)
			p.SetConscientiousness(tt.input)
			p.SetExtraversion(tt.input)
			p.SetAgreeableness(tt.input)
			p.SetNeuroticism(tt.input)

			assert.Equal(t, tt.expected, p.Openness())
			assert.Equal(t, tt.expected, p.Conscientiousness())
			assert.Equal(t, tt.expected, p.Extraversion())
			assert.Equal(t, tt.expected, p.Agreeableness())
			assert.Equal(t, tt.expected, p.Neuroticism())
		})
	}
}

func TestFromTraits_Clamps(t *testing.T) {
	p := FromTraits(Traits{
		Openness:          1.5,
		Conscientiousness: 0.2,
		Extraversion:      -1,
		Agreeableness:     0.9,
		Neuroticism:       0.5,
	})

	assert.Equal(t, Traits{
		Openness:          1,
		Conscientiousness: 0.2,
		Extraversion:      0,
		Agreeableness:     0.9,
		Neuroticism:       0.5,
	}, p.Traits())
}
