// Package prefilter screens call transcripts before any attribution work.
// Voicemails, dropped calls, and near-empty transcripts are flagged as junk
// so the cascade never runs on them.
package prefilter

import (
	"fmt"
	"math"
	"regexp"
	"strings"
)

// Config holds the prefilter thresholds. Zero values fall back to defaults
// so an empty Config behaves like DefaultConfig().
type Config struct {
	MinWordCount         int `yaml:"min_word_count" mapstructure:"min_word_count"`
	ShortDurationSeconds int `yaml:"short_duration_seconds" mapstructure:"short_duration_seconds"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinWordCount:         20,
		ShortDurationSeconds: 15,
	}
}

// Result reports the junk verdict and the signals behind it.
type Result struct {
	IsJunk          bool     `json:"is_junk"`
	ReasonCodes     []string `json:"reason_codes"`
	SignalSummary   []string `json:"signal_summary"`
	WordCount       int      `json:"word_count"`
	SpeakerTurns    int      `json:"speaker_turns"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`
}

type pattern struct {
	code string
	re   *regexp.Regexp
}

// Voicemail phrases are an absolute junk signal on short transcripts; the
// substantive-topic guard never suppresses them.
var voicemailPatterns = []pattern{
	{"voicemail_leave_message", regexp.MustCompile(`(?i)\bleave (?:me )?(?:a )?message\b`)},
	{"voicemail_mailbox_full", regexp.MustCompile(`(?i)\bmailbox is (?:full|not set up)\b`)},
	{"voicemail_not_available", regexp.MustCompile(`(?i)\b(?:cannot|can't|unable to)\s+take your call\b`)},
	{"voicemail_after_tone", regexp.MustCompile(`(?i)\bafter the tone\b`)},
	{"voicemail_record_message", regexp.MustCompile(`(?i)\bplease record your message\b`)},
}

var connectionFailurePatterns = []pattern{
	{"connection_bad_service", regexp.MustCompile(`(?i)\bbad service\b`)},
	{"connection_call_dropped", regexp.MustCompile(`(?i)\bcall (?:dropped|failed|disconnected)\b`)},
	{"connection_cant_hear", regexp.MustCompile(`(?i)\b(?:can you|can't|cannot)\s+hear (?:me|you)\b`)},
}

// Substantive-topic terms suppress the low-signal and connection-failure
// junk paths: a short call that mentions a change order is still billable.
var substantivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bestimate\b`),
	regexp.MustCompile(`(?i)\bproposal\b`),
	regexp.MustCompile(`(?i)\bcontract\b`),
	regexp.MustCompile(`(?i)\binvoice\b`),
	regexp.MustCompile(`(?i)\bdeposit\b`),
	regexp.MustCompile(`(?i)\bpermit\b`),
	regexp.MustCompile(`(?i)\bschedule\b`),
	regexp.MustCompile(`(?i)\bchange order\b`),
	regexp.MustCompile(`(?i)\binstall(?:ation)?\b`),
	regexp.MustCompile(`(?i)\bcabinet(?:s)?\b`),
	regexp.MustCompile(`(?i)\bcountertop(?:s)?\b`),
	regexp.MustCompile(`(?i)\btile\b`),
	regexp.MustCompile(`(?i)\bplumbing\b`),
	regexp.MustCompile(`(?i)\belectrical\b`),
	regexp.MustCompile(`\$\s*\d+`),
}

var (
	wordRe        = regexp.MustCompile(`(?i)[a-z0-9']+`)
	speakerTurnRe = regexp.MustCompile(`(?m)^\s*[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\s*:`)
)

// NormalizeDurationSeconds coerces a raw duration into whole seconds.
// Non-positive and non-finite values become nil; values over 10,000 are
// assumed to be milliseconds.
func NormalizeDurationSeconds(raw *float64) *int {
	if raw == nil {
		return nil
	}
	v := *raw
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return nil
	}
	if v > 10_000 {
		v = v / 1000
	}
	secs := int(math.Round(v))
	return &secs
}

func countWords(transcript string) int {
	return len(wordRe.FindAllString(transcript, -1))
}

func countSpeakerTurns(transcript string) int {
	return len(speakerTurnRe.FindAllString(transcript, -1))
}

// Evaluate screens one transcript. durationSeconds may be nil when the
// telephony layer did not report one.
func Evaluate(transcript string, durationSeconds *float64, cfg Config) Result {
	if cfg.MinWordCount <= 0 {
		cfg.MinWordCount = DefaultConfig().MinWordCount
	}
	if cfg.ShortDurationSeconds <= 0 {
		cfg.ShortDurationSeconds = DefaultConfig().ShortDurationSeconds
	}

	text := strings.TrimSpace(transcript)
	duration := NormalizeDurationSeconds(durationSeconds)

	wordCount := countWords(text)
	speakerTurns := countSpeakerTurns(text)
	lowWordCount := wordCount > 0 && wordCount < cfg.MinWordCount
	singleSpeakerTurn := speakerTurns <= 1
	shortDuration := duration != nil && *duration < cfg.ShortDurationSeconds

	var voicemailHits, connectionHits []string
	for _, p := range voicemailPatterns {
		if p.re.MatchString(text) {
			voicemailHits = append(voicemailHits, p.code)
		}
	}
	for _, p := range connectionFailurePatterns {
		if p.re.MatchString(text) {
			connectionHits = append(connectionHits, p.code)
		}
	}
	substantive := false
	for _, re := range substantivePatterns {
		if re.MatchString(text) {
			substantive = true
			break
		}
	}

	junkByVoicemail := len(voicemailHits) > 0 && wordCount <= 80
	junkByConnectionFailure := len(connectionHits) > 0 && wordCount <= 40 && !substantive
	junkByMinimalContent := lowWordCount && (singleSpeakerTurn || shortDuration) && !substantive
	isJunk := junkByVoicemail || junkByConnectionFailure || junkByMinimalContent

	var reasonCodes []string
	if isJunk {
		reasonCodes = append(reasonCodes, "junk_call_filtered")
		if junkByVoicemail {
			reasonCodes = append(reasonCodes, "voicemail_pattern")
		}
		if junkByConnectionFailure {
			reasonCodes = append(reasonCodes, "connection_failure_pattern")
		}
		if lowWordCount {
			reasonCodes = append(reasonCodes, "low_word_count")
		}
		if singleSpeakerTurn {
			reasonCodes = append(reasonCodes, "single_speaker_turn")
		}
		if shortDuration {
			reasonCodes = append(reasonCodes, "short_duration")
		}
	}

	summary := []string{
		fmt.Sprintf("word_count=%d", wordCount),
		fmt.Sprintf("speaker_turns=%d", speakerTurns),
	}
	if duration != nil {
		summary = append(summary, fmt.Sprintf("duration_seconds=%d", *duration))
	}
	if len(voicemailHits) > 0 {
		summary = append(summary, "voicemail_hits="+strings.Join(voicemailHits, "|"))
	}
	if len(connectionHits) > 0 {
		summary = append(summary, "connection_hits="+strings.Join(connectionHits, "|"))
	}
	if substantive {
		summary = append(summary, "substantive_signal_present")
	}

	return Result{
		IsJunk:          isJunk,
		ReasonCodes:     dedupe(reasonCodes),
		SignalSummary:   summary,
		WordCount:       wordCount,
		SpeakerTurns:    speakerTurns,
		DurationSeconds: duration,
	}
}

func dedupe(codes []string) []string {
	seen := make(map[string]bool, len(codes))
	out := codes[:0]
	for _, c := range codes {
		if seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}
