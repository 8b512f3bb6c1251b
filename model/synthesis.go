package model

// Wire types for the synthesis provider API. The provider has two
// request shapes depending on the model: a bare inputs string for the
// musicgen family, and a structured inputs object for stable-audio.

// SynthTextRequest is the bare-string request shape.
type SynthTextRequest struct {
	Inputs string `json:"inputs"`
}

// SynthStructuredRequest is the structured request shape.
type SynthStructuredRequest struct {
	Inputs SynthStructuredInputs `json:"inputs"`
}

type SynthStructuredInputs struct {
	Prompt        string  `json:"prompt"`
	Duration      int     `json:"duration"`
	GuidanceScale float64 `json:"guidance_scale"`
	Seed          int     `json:"seed"`
}

// SynthEnvelope is the JSON response some provider variants return
// instead of raw audio bytes. Exactly one of the fields is normally
// populated.
type SynthEnvelope struct {
	Audio         string  `json:"audio,omitempty"`    // base64-encoded audio
	AudioURL      string  `json:"audio_url,omitempty"`
	Error         string  `json:"error,omitempty"`
	EstimatedTime float64 `json:"estimated_time,omitempty"`
}
