// Package polly turns dialogue text into PCM audio via Amazon Polly. Voices
// are selected per speaker from a static profile table; failures come back as
// structured errors tagged for the caller's soft-error handling, never as
// panics across the boundary.
package polly

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"podforge/internal/media/wav"
	"podforge/internal/script"
	"podforge/internal/services"
)

const defaultTimeout = 30 * time.Second

// VoiceProfile selects a Polly voice and delivery engine for one speaker.
type VoiceProfile struct {
	VoiceID string
	Engine  string
}

// Config captures the runtime settings of the synthesizer.
type Config struct {
	Region       string
	Engine       string
	SampleRateHz int
	HostVoice    string
	ExpertVoice  string
	Timeout      time.Duration
}

type synthClient interface {
	SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error)
}

// Synthesizer renders dialogue turns as raw PCM buffers.
type Synthesizer struct {
	client   synthClient
	cfg      Config
	profiles map[script.Speaker]VoiceProfile
}

// Option customizes the synthesizer.
type Option func(*Synthesizer)

// WithClient injects a Polly client, bypassing AWS credential resolution.
func WithClient(client synthClient) Option {
	return func(s *Synthesizer) {
		if client != nil {
			s.client = client
		}
	}
}

// NewSynthesizer constructs a synthesizer. Unless a client is injected, AWS
// credentials are resolved from the default chain for the configured region.
func NewSynthesizer(ctx context.Context, cfg Config, opts ...Option) (*Synthesizer, error) {
	if strings.TrimSpace(cfg.Region) == "" {
		cfg.Region = "us-east-1"
	}
	if strings.TrimSpace(cfg.Engine) == "" {
		cfg.Engine = "neural"
	}
	if cfg.SampleRateHz != 8000 && cfg.SampleRateHz != 16000 {
		return nil, services.Wrap(services.ErrConfiguration, "synthesize", "configure",
			fmt.Sprintf("pcm sample rate %d not supported, use 8000 or 16000", cfg.SampleRateHz), nil)
	}
	if strings.TrimSpace(cfg.HostVoice) == "" {
		cfg.HostVoice = "Joanna"
	}
	if strings.TrimSpace(cfg.ExpertVoice) == "" {
		cfg.ExpertVoice = "Matthew"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	s := &Synthesizer{
		cfg: cfg,
		profiles: map[script.Speaker]VoiceProfile{
			script.SpeakerHost:   {VoiceID: cfg.HostVoice, Engine: cfg.Engine},
			script.SpeakerExpert: {VoiceID: cfg.ExpertVoice, Engine: cfg.Engine},
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
		if err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "synthesize", "configure", "load aws config", err)
		}
		s.client = awspolly.NewFromConfig(awsCfg)
	}
	return s, nil
}

// Profile returns the voice profile used for a speaker.
func (s *Synthesizer) Profile(speaker script.Speaker) (VoiceProfile, bool) {
	profile, ok := s.profiles[speaker]
	return profile, ok
}

// Format returns the PCM format of every buffer the synthesizer produces.
// Polly PCM output is 16-bit signed little-endian mono.
func (s *Synthesizer) Format() wav.Format {
	return wav.Format{SampleRate: s.cfg.SampleRateHz, Channels: 1, BitsPerSample: 16}
}

// Synthesize renders one turn of text for a speaker and returns the raw PCM
// buffer together with its format.
func (s *Synthesizer) Synthesize(ctx context.Context, text string, speaker script.Speaker) ([]byte, wav.Format, error) {
	var format wav.Format
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, format, services.Wrap(services.ErrValidation, "synthesize", "render", "text required", nil)
	}
	profile, ok := s.profiles[speaker]
	if !ok {
		return nil, format, services.Wrap(services.ErrValidation, "synthesize", "render",
			fmt.Sprintf("no voice profile for speaker %q", speaker), nil)
	}

	engine := pollytypes.EngineStandard
	if strings.EqualFold(profile.Engine, "neural") {
		engine = pollytypes.EngineNeural
	}
	sampleRate := strconv.Itoa(s.cfg.SampleRateHz)

	callCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	output, err := s.client.SynthesizeSpeech(callCtx, &awspolly.SynthesizeSpeechInput{
		Engine:       engine,
		OutputFormat: pollytypes.OutputFormatPcm,
		SampleRate:   &sampleRate,
		Text:         &text,
		TextType:     pollytypes.TextTypeText,
		VoiceId:      pollytypes.VoiceId(profile.VoiceID),
	})
	if err != nil {
		return nil, format, normalizeError(err)
	}
	if output == nil || output.AudioStream == nil {
		return nil, format, services.Wrap(services.ErrTransient, "synthesize", "render", "empty audio stream", nil)
	}
	defer output.AudioStream.Close()

	pcm, err := io.ReadAll(output.AudioStream)
	if err != nil {
		return nil, format, services.Wrap(services.ErrTransient, "synthesize", "render", "read audio stream", err)
	}
	if len(pcm) == 0 {
		return nil, format, services.Wrap(services.ErrTransient, "synthesize", "render", "empty audio stream", nil)
	}
	return pcm, s.Format(), nil
}

func normalizeError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return services.Wrap(services.ErrTimeout, "synthesize", "render", "speech synthesis timed out", err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "TooManyRequestsException":
			return services.Wrap(services.ErrTransient, "synthesize", "render", "polly throttled request", err)
		case "InvalidSsmlException", "TextLengthExceededException", "InvalidSampleRateException", "LexiconNotFoundException":
			return services.Wrap(services.ErrValidation, "synthesize", "render", "polly rejected request", err)
		default:
			return services.Wrap(services.ErrExternalTool, "synthesize", "render", "polly request failed", err)
		}
	}
	return services.Wrap(services.ErrExternalTool, "synthesize", "render", "polly transport error", err)
}
