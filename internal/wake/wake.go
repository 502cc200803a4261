// Package wake decides whether a short transcript plausibly contains the
// configured wake phrase. It is a cheap approximate matcher tolerant of STT
// misrecognition, not phoneme-level detection.
package wake

import (
	"strings"
	"time"
)

// DefaultSensitivity is the match threshold used when none is configured.
const DefaultSensitivity = 0.6

var greetingPrefixes = []string{"hey ", "hi ", "hello ", "ok "}

// Config holds the wake phrase and matching parameters. Regenerate via
// NewConfig when the phrase changes; the variation set is derived.
type Config struct {
	Phrase      string
	Aliases     []string // known misrecognitions supplied by the caller
	Sensitivity float64  // [0,1] minimum score to report a detection
	ListenFor   time.Duration
	CyclePause  time.Duration

	variations []string
}

// NewConfig builds a config and its variation set: the base phrase first,
// then greeting-prefixed forms, then custom aliases. Order matters; ties in
// matching go to the earliest variation.
func NewConfig(phrase string, aliases []string, sensitivity float64) Config {
	phrase = normalize(phrase)
	if sensitivity <= 0 || sensitivity > 1 {
		sensitivity = DefaultSensitivity
	}

	vars := make([]string, 0, 1+len(greetingPrefixes)+len(aliases))
	if phrase != "" {
		vars = append(vars, phrase)
		for _, p := range greetingPrefixes {
			vars = append(vars, p+phrase)
		}
	}
	for _, a := range aliases {
		if a = normalize(a); a != "" {
			vars = append(vars, a)
		}
	}

	return Config{
		Phrase:      phrase,
		Aliases:     aliases,
		Sensitivity: sensitivity,
		ListenFor:   3 * time.Second,
		CyclePause:  300 * time.Millisecond,
		variations:  vars,
	}
}

// Variations returns the derived match set.
func (c Config) Variations() []string { return c.variations }

// Detection is the outcome of one listen cycle.
type Detection struct {
	Detected   bool
	Variation  string
	Confidence float64
	Timestamp  time.Time
}

// Check scores the transcript against every variation and reports a detection
// when the best score reaches the sensitivity threshold. Pure function of the
// text and config.
func (c Config) Check(transcript string) Detection {
	now := time.Now()
	text := normalize(transcript)
	if text == "" || len(c.variations) == 0 {
		return Detection{Timestamp: now}
	}

	best := Detection{Timestamp: now}
	for _, v := range c.variations {
		score := score(text, v)
		if score > best.Confidence {
			best.Confidence = score
			best.Variation = v
		}
	}

	if best.Confidence >= c.Sensitivity {
		best.Detected = true
		return best
	}
	return Detection{Confidence: best.Confidence, Timestamp: now}
}

// score: exact match 1.0; substring containment 0.9; one-contains-other gets
// a length-ratio bonus; otherwise the fraction of the shorter string's
// characters present anywhere in the longer one.
func score(text, variation string) float64 {
	if text == variation {
		return 1.0
	}
	if strings.Contains(text, variation) {
		return 0.9
	}

	shorter, longer := text, variation
	if len(shorter) > len(longer) {
		shorter, longer = longer, shorter
	}
	if len(longer) == 0 {
		return 0
	}

	if strings.Contains(longer, shorter) {
		s := float64(len(shorter))/float64(len(longer)) + 0.3
		if s > 1.0 {
			s = 1.0
		}
		return s
	}

	common := 0
	for _, r := range shorter {
		if strings.ContainsRune(longer, r) {
			common++
		}
	}
	return float64(common) / float64(len(longer))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
