package emotion

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAction_Table(t *testing.T) {
	tests := []struct {
		emotion  Emotion
		expected string
	}{
		{Joy, "Dance"},
		{Trust, "Collaborate"},
		{Fear, "Hide"},
		{Surprise, "Investigate"},
		{Sadness, "Cry"},
		{Disgust, "Reject"},
		{Anger, "Shout"},
		{Anticipation, "Prepare"},
		{Neutral, "Observe"},
	}

	require.Len(t, tests, len(All()), "table should cover every emotion")
	for _, tt := range tests {
		t.Run(tt.emotion.String(), func(t *testing.T) {
			assert.Equal(t, tt.expected, Action(tt.emotion))
		})
	}
}

func TestAction_OutOfRangeBehavesAsNeutral(t *testing.T) {
	assert.Equal(t, "Observe", Action(Emotion(42)))
}

func TestParse(t *testing.T) {
	tests := []struct {
		input    string
		expected Emotion
		ok       bool
	}{
		{"Joy", Joy, true},
		{"fear", Fear, true},
		{"  ANTICIPATION ", Anticipation, true},
		{"sAdNeSs", Sadness, true},
		{"neutral", Neutral, true},
		{"boredom", Neutral, false},
		{"", Neutral, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, ok := Parse(tt.input)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAll_RoundTripsThroughString(t *testing.T) {
	for _, e := range All() {
		parsed, ok := Parse(e.String())
		assert.True(t, ok, e.String())
		assert.Equal(t, e, parsed)
	}
}

func TestEmotion_JSON(t *testing.T) {
	type payload struct {
		Emotion Emotion `json:"emotion"`
	}

	data, err := json.Marshal(payload{Emotion: Anger})
	require.NoError(t, err)
	assert.JSONEq(t, `{"emotion":"Anger"}`, string(data))

	var p payload
	require.NoError(t, json.Unmarshal([]byte(`{"emotion":"trust"}`), &p))
	assert.Equal(t, Trust, p.Emotion)

	assert.Error(t, json.Unmarshal([]byte(`{"emotion":"ennui"}`), &p))

	_, err = json.Marshal(payload{Emotion: Emotion(99)})
	assert.Error(t, err)
}
