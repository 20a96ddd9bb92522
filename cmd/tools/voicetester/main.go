// Command voicetester exercises speech synthesis, recognition and payload
// playback from the command line.
package main

import (
	"context"
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"google.golang.org/genai"

	"github.com/aisuru/companion/backend/internal/audio/pcm"
	"github.com/aisuru/companion/backend/internal/audio/playback"
	"github.com/aisuru/companion/backend/internal/config"
	"github.com/aisuru/companion/backend/internal/logging"
	"github.com/aisuru/companion/backend/internal/service/speech"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "voicetester",
		Short:        "Synthesize, transcribe and decode companion voice payloads",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			return logging.Setup(logLevel, "console")
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "zerolog level")

	root.AddCommand(newSpeakCmd(), newTranscribeCmd(), newDecodeCmd())
	return root
}

func newSpeakCmd() *cobra.Command {
	var (
		voice   string
		out     string
		payload string
		timeout time.Duration
	)

	cmd := &cobra.Command{
		Use:   "speak TEXT",
		Short: "Synthesize TEXT with Gemini TTS and write it as WAV",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if !cfg.Speech.Enabled {
				return errors.New("speech synthesis is disabled, set GEMINI_API_KEY")
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  cfg.Speech.APIKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return err
			}

			synth := speech.NewGeminiSynthesizer(client, cfg.Speech.Model, timeout, cfg.Speech.Format)
			resolved := speech.ResolveVoice(voice)
			started := time.Now()
			encoded, err := synth.Synthesize(ctx, strings.Join(args, " "), resolved)
			if err != nil {
				return err
			}
			if encoded == "" {
				return errors.New("nothing to speak after removing markers")
			}

			buf := cfg.Speech.Format.DecodePayload(encoded)
			log.Info().
				Str("voice", resolved).
				Dur("latency", time.Since(started)).
				Dur("duration", buf.Duration()).
				Msg("synthesized")

			if payload != "" {
				if err := os.WriteFile(payload, []byte(encoded), 0o644); err != nil {
					return err
				}
			}
			return writeWAV(out, buf)
		},
	}
	cmd.Flags().StringVar(&voice, "voice", speech.DefaultVoice, "prebuilt voice name")
	cmd.Flags().StringVar(&out, "out", "speech.wav", "WAV output path")
	cmd.Flags().StringVar(&payload, "payload", "", "also write the encoded payload to this path")
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")
	return cmd
}

func newTranscribeCmd() *cobra.Command {
	var (
		language string
		timeout  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "transcribe AUDIO_FILE",
		Short: "Transcribe a recording with Gemini; files without a known extension are raw PCM",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.Speech.APIKey == "" || cfg.Speech.TranscribeModel == "" {
				return errors.New("speech recognition is disabled, set GEMINI_API_KEY and SPEECH_TRANSCRIBE_MODEL")
			}

			audio, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mimeType := speech.InferMIMEType(args[0])
			if mimeType == "" {
				if audio, err = speech.EncodeWAV(cfg.Speech.InputFormat, audio); err != nil {
					return err
				}
				mimeType = "audio/wav"
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			client, err := genai.NewClient(ctx, &genai.ClientConfig{
				APIKey:  cfg.Speech.APIKey,
				Backend: genai.BackendGeminiAPI,
			})
			if err != nil {
				return err
			}

			started := time.Now()
			text, err := speech.NewGeminiTranscriber(client, cfg.Speech.TranscribeModel, timeout).
				Transcribe(ctx, audio, mimeType, language)
			if err != nil {
				return err
			}
			log.Info().
				Str("mime", mimeType).
				Dur("latency", time.Since(started)).
				Str("text", text).
				Msg("transcribed")
			return nil
		},
	}
	cmd.Flags().StringVar(&language, "language", "", "expected language code")
	cmd.Flags().DurationVar(&timeout, "timeout", 45*time.Second, "request timeout")
	return cmd
}

func newDecodeCmd() *cobra.Command {
	var (
		out        string
		play       bool
		sampleRate int
		channels   int
	)

	cmd := &cobra.Command{
		Use:   "decode PAYLOAD_FILE",
		Short: "Decode a base64 PCM payload into WAV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			format := pcm.Format{SampleRate: sampleRate, Channels: channels}
			encoded := strings.TrimSpace(string(raw))
			buf := format.DecodePayload(encoded)
			log.Info().
				Stringer("format", format).
				Int("frames", buf.Frames()).
				Dur("duration", buf.Duration()).
				Bool("silent", buf.IsSilent()).
				Msg("decoded")

			if play {
				if err := simulatePlayback(cmd.Context(), encoded, format); err != nil {
					return err
				}
			}
			if out == "" {
				return nil
			}
			return writeWAV(out, buf)
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "WAV output path")
	cmd.Flags().BoolVar(&play, "play", false, "run the payload through a paced playback control")
	cmd.Flags().IntVar(&sampleRate, "rate", pcm.L16Mono24K.SampleRate, "sample rate in Hz")
	cmd.Flags().IntVar(&channels, "channels", pcm.L16Mono24K.Channels, "channel count")
	return cmd
}

// simulatePlayback drives a playback control against a paced discard sink and
// logs its state transitions.
func simulatePlayback(ctx context.Context, encoded string, format pcm.Format) error {
	player := playback.NewPlayer(encoded, playback.DiscardSink{Pace: true}, playback.WithFormat(format))
	if !player.Available() {
		return errors.New("payload is empty")
	}

	updates := player.Watch()
	done, started := player.Trigger(ctx)
	if !started {
		return errors.New("playback did not start")
	}
	begin := time.Now()
	for {
		select {
		case playing := <-updates:
			log.Info().Bool("playing", playing).Dur("elapsed", time.Since(begin)).Msg("playback")
		case <-done:
			for {
				select {
				case playing := <-updates:
					log.Info().Bool("playing", playing).Dur("elapsed", time.Since(begin)).Msg("playback")
				default:
					return nil
				}
			}
		}
	}
}

func writeWAV(path string, buf *pcm.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := buf.WriteWAV(f); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("wav written")
	return nil
}
