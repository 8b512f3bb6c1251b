package synthesis

import (
	"encoding/json"
	"strings"

	"github.com/cruz-jay/beatbot/model"
)

// ProviderResponse is the decoded outcome of a successful provider
// exchange. The body is inspected exactly once, here; callers switch
// on the concrete type instead of re-sniffing.
type ProviderResponse interface {
	providerResponse()
}

// RawAudio is audio bytes delivered directly with an audio content-type.
type RawAudio struct {
	Bytes []byte
	Mime  string
}

// EncodedAudio is base64 audio delivered inside a JSON envelope.
type EncodedAudio struct {
	Base64 string
}

// RemoteAudio is a directly usable URL delivered inside a JSON envelope.
type RemoteAudio struct {
	URL string
}

// ErrorPayload is a 200-status body that is not recognizable as audio,
// such as an HTML error page or a JSON body with no audio field.
type ErrorPayload struct {
	Message string
}

func (RawAudio) providerResponse()     {}
func (EncodedAudio) providerResponse() {}
func (RemoteAudio) providerResponse()  {}
func (ErrorPayload) providerResponse() {}

// decodeResponse classifies a 2xx provider body by content-type and shape.
func decodeResponse(contentType string, body []byte) ProviderResponse {
	ct := strings.ToLower(contentType)

	if strings.Contains(ct, "audio") || strings.Contains(ct, "application/octet-stream") {
		mime := "audio/wav"
		if strings.Contains(ct, "audio/") {
			mime = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
		}
		return RawAudio{Bytes: body, Mime: mime}
	}

	if strings.Contains(ct, "application/json") {
		var envelope model.SynthEnvelope
		if err := json.Unmarshal(body, &envelope); err == nil {
			switch {
			case envelope.Audio != "":
				return EncodedAudio{Base64: envelope.Audio}
			case envelope.AudioURL != "":
				return RemoteAudio{URL: envelope.AudioURL}
			case envelope.Error != "":
				return ErrorPayload{Message: envelope.Error}
			}
		}
		return ErrorPayload{Message: "Unexpected JSON response with no audio field"}
	}

	text := string(body)
	if strings.Contains(text, "<!DOCTYPE html>") || strings.Contains(text, "<html") {
		return ErrorPayload{Message: "Server returned HTML instead of audio data."}
	}
	if len(text) > 100 {
		text = text[:100] + "..."
	}
	return ErrorPayload{Message: "Unexpected response format: " + text}
}
