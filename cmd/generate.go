package cmd

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	"github.com/cruz-jay/beatbot/config"
	"github.com/cruz-jay/beatbot/core/synthesis"

	"github.com/spf13/cobra"
)

var (
	generatePrompt string
	generateOutput string
)

// generateCmd runs a one-off synthesis against the configured
// provider and writes the audio to a file. Useful for smoke-testing
// provider credentials without the server or database.
var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a music clip from a prompt",
	Run: func(cmd *cobra.Command, args []string) {
		if generatePrompt == "" {
			fmt.Println("Please provide a prompt with --prompt")
			os.Exit(1)
		}

		cfg := config.Load()
		client := synthesis.NewClient(synthesis.ClientConfig{
			APIURL:         cfg.SynthAPIURL,
			APIToken:       cfg.SynthAPIToken,
			Model:          cfg.SynthModel,
			Duration:       cfg.SynthDuration,
			AttemptTimeout: cfg.SynthAttemptTimeout,
		})

		fmt.Printf("Generating audio for: %s\n", generatePrompt)
		resp, err := client.Synthesize(context.Background(), generatePrompt)
		if err != nil {
			log.Fatalf("Synthesis failed: %v", err)
		}

		var audio []byte
		switch body := resp.(type) {
		case synthesis.RawAudio:
			audio = body.Bytes
		case synthesis.EncodedAudio:
			audio, err = base64.StdEncoding.DecodeString(body.Base64)
			if err != nil {
				log.Fatalf("Provider sent malformed base64 audio: %v", err)
			}
		case synthesis.RemoteAudio:
			fmt.Printf("Audio available at: %s\n", body.URL)
			return
		case synthesis.ErrorPayload:
			log.Fatalf("Provider did not return audio: %s", body.Message)
		}

		if err := os.WriteFile(generateOutput, audio, 0644); err != nil {
			log.Fatalf("Failed to write %s: %v", generateOutput, err)
		}
		fmt.Printf("Wrote %d bytes to %s\n", len(audio), generateOutput)
	},
}

func init() {
	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "p", "", "text prompt to synthesize")
	generateCmd.Flags().StringVarP(&generateOutput, "output", "o", "output.wav", "output file path")
	rootCmd.AddCommand(generateCmd)
}
