package prefilter

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestEvaluate_VoicemailShortTranscript(t *testing.T) {
	res := Evaluate("Hi, you've reached Dave. Please leave a message after the tone.", nil, Config{})

	assert.True(t, res.IsJunk)
	assert.Contains(t, res.ReasonCodes, "junk_call_filtered")
	assert.Contains(t, res.ReasonCodes, "voicemail_pattern")
	assert.Equal(t, "junk_call_filtered", res.ReasonCodes[0])
}

func TestEvaluate_VoicemailIgnoresDuration(t *testing.T) {
	// Voicemail is absolute: a long reported duration does not save it.
	res := Evaluate("Please leave a message.", floatPtr(600), Config{})

	assert.True(t, res.IsJunk)
	assert.Contains(t, res.ReasonCodes, "voicemail_pattern")
}

func TestEvaluate_VoicemailOverEightyWordsNotJunk(t *testing.T) {
	long := "leave a message " + strings.Repeat("word ", 90)
	res := Evaluate(long, nil, Config{})

	assert.False(t, res.IsJunk)
	assert.Empty(t, res.ReasonCodes)
}

func TestEvaluate_ConnectionFailure(t *testing.T) {
	res := Evaluate("Hello? Can you hear me? I think the call dropped.", nil, Config{})

	assert.True(t, res.IsJunk)
	assert.Contains(t, res.ReasonCodes, "connection_failure_pattern")
}

func TestEvaluate_SubstantiveTopicSuppressesConnectionFailure(t *testing.T) {
	res := Evaluate("Can you hear me? Anyway, the estimate is ready.", nil, Config{})

	assert.False(t, res.IsJunk)
	assert.Contains(t, res.SignalSummary, "substantive_signal_present")
}

func TestEvaluate_SubstantiveTopicSuppressesLowContent(t *testing.T) {
	// Nine words, single speaker, short duration — but mentions a permit.
	res := Evaluate("Mike: the permit came through for the kitchen job", floatPtr(8), Config{})

	assert.False(t, res.IsJunk)
}

func TestEvaluate_DollarAmountIsSubstantive(t *testing.T) {
	res := Evaluate("Bob: deposit is $ 2500 see you then", floatPtr(5), Config{})

	assert.False(t, res.IsJunk)
}

func TestEvaluate_LowWordCountSingleSpeaker(t *testing.T) {
	res := Evaluate("Sarah: hey call me back when you can", nil, Config{})

	require.True(t, res.IsJunk)
	assert.Contains(t, res.ReasonCodes, "low_word_count")
	assert.Contains(t, res.ReasonCodes, "single_speaker_turn")
}

func TestEvaluate_LowWordCountShortDuration(t *testing.T) {
	res := Evaluate("Tom: quick one\nJerry: yes go ahead thanks bye", floatPtr(10), Config{})

	require.True(t, res.IsJunk)
	assert.Contains(t, res.ReasonCodes, "low_word_count")
	assert.Contains(t, res.ReasonCodes, "short_duration")
}

func TestEvaluate_LowWordCountTwoSpeakersLongDuration(t *testing.T) {
	// Two speaker turns and no short-duration signal — not junk.
	res := Evaluate("Tom: quick one\nJerry: yes go ahead thanks bye", floatPtr(120), Config{})

	assert.False(t, res.IsJunk)
}

func TestEvaluate_EmptyTranscript(t *testing.T) {
	// Zero words never counts as low word count.
	res := Evaluate("", nil, Config{})

	assert.False(t, res.IsJunk)
	assert.Zero(t, res.WordCount)
}

func TestEvaluate_CustomThresholds(t *testing.T) {
	cfg := Config{MinWordCount: 5, ShortDurationSeconds: 3}
	res := Evaluate("just four words here", nil, cfg)

	assert.True(t, res.IsJunk)
}

func TestEvaluate_ReasonCodesDeduplicated(t *testing.T) {
	res := Evaluate("Please leave a message.", floatPtr(5), Config{})

	seen := map[string]int{}
	for _, c := range res.ReasonCodes {
		seen[c]++
	}
	for code, n := range seen {
		assert.Equal(t, 1, n, "duplicate reason code %s", code)
	}
}

func TestNormalizeDurationSeconds(t *testing.T) {
	tests := []struct {
		name string
		in   *float64
		want *int
	}{
		{"nil", nil, nil},
		{"zero", floatPtr(0), nil},
		{"negative", floatPtr(-12), nil},
		{"seconds", floatPtr(94.4), intPtr(94)},
		{"milliseconds", floatPtr(94_400), intPtr(94)},
		{"rounds", floatPtr(14.6), intPtr(15)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeDurationSeconds(tc.in)
			if tc.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tc.want, *got)
		})
	}
}

func intPtr(v int) *int { return &v }

func TestEvaluate_SignalSummary(t *testing.T) {
	res := Evaluate("Please leave a message.", floatPtr(12), Config{})

	assert.Contains(t, res.SignalSummary, "word_count=4")
	assert.Contains(t, res.SignalSummary, "duration_seconds=12")
	assert.Contains(t, res.SignalSummary, "voicemail_hits=voicemail_leave_message")
}
