package polly

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	awspolly "github.com/aws/aws-sdk-go-v2/service/polly"
	pollytypes "github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/aws/smithy-go"

	"podforge/internal/script"
	"podforge/internal/services"
)

type stubClient struct {
	lastInput *awspolly.SynthesizeSpeechInput
	pcm       []byte
	err       error
}

func (s *stubClient) SynthesizeSpeech(ctx context.Context, params *awspolly.SynthesizeSpeechInput, optFns ...func(*awspolly.Options)) (*awspolly.SynthesizeSpeechOutput, error) {
	s.lastInput = params
	if s.err != nil {
		return nil, s.err
	}
	return &awspolly.SynthesizeSpeechOutput{
		AudioStream: io.NopCloser(strings.NewReader(string(s.pcm))),
	}, nil
}

func newTestSynthesizer(t *testing.T, client *stubClient) *Synthesizer {
	t.Helper()
	s, err := NewSynthesizer(context.Background(), Config{
		Region:       "us-east-1",
		Engine:       "neural",
		SampleRateHz: 16000,
		HostVoice:    "Joanna",
		ExpertVoice:  "Matthew",
	}, WithClient(client))
	if err != nil {
		t.Fatalf("NewSynthesizer: %v", err)
	}
	return s
}

func TestSynthesizeSelectsVoiceBySpeaker(t *testing.T) {
	t.Parallel()

	client := &stubClient{pcm: []byte{1, 2, 3, 4}}
	s := newTestSynthesizer(t, client)

	pcm, format, err := s.Synthesize(context.Background(), "Welcome to the show.", script.SpeakerExpert)
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if len(pcm) != 4 {
		t.Fatalf("pcm length = %d", len(pcm))
	}
	if format.SampleRate != 16000 || format.Channels != 1 || format.BitsPerSample != 16 {
		t.Fatalf("unexpected format: %+v", format)
	}
	if got := client.lastInput.VoiceId; got != pollytypes.VoiceId("Matthew") {
		t.Fatalf("voice = %q, want Matthew", got)
	}
	if client.lastInput.OutputFormat != pollytypes.OutputFormatPcm {
		t.Fatalf("output format = %q", client.lastInput.OutputFormat)
	}
	if *client.lastInput.SampleRate != "16000" {
		t.Fatalf("sample rate = %q", *client.lastInput.SampleRate)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, &stubClient{pcm: []byte{1, 2}})
	_, _, err := s.Synthesize(context.Background(), "   ", script.SpeakerHost)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

type stubAPIError struct {
	code string
}

func (e *stubAPIError) Error() string                 { return e.code }
func (e *stubAPIError) ErrorCode() string             { return e.code }
func (e *stubAPIError) ErrorMessage() string          { return e.code }
func (e *stubAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultServer }

func TestSynthesizeNormalizesThrottling(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, &stubClient{err: &stubAPIError{code: "TooManyRequestsException"}})
	_, _, err := s.Synthesize(context.Background(), "Hello.", script.SpeakerHost)
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSynthesizeNormalizesClientError(t *testing.T) {
	t.Parallel()

	s := newTestSynthesizer(t, &stubClient{err: &stubAPIError{code: "TextLengthExceededException"}})
	_, _, err := s.Synthesize(context.Background(), "Hello.", script.SpeakerHost)
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestNewSynthesizerRejectsBadSampleRate(t *testing.T) {
	t.Parallel()

	_, err := NewSynthesizer(context.Background(), Config{SampleRateHz: 44100}, WithClient(&stubClient{}))
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
