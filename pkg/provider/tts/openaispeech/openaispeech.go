// Package openaispeech implements tts.Renderer using the OpenAI speech API.
//
// Synthesis returns raw PCM which is handed to an injected tts.Player for
// blocking playback. Usage:
//
//	r, err := openaispeech.New(apiKey, player,
//	    openaispeech.WithModel("gpt-4o-mini-tts"),
//	)
//	err = r.Speak(ctx, "Hey there!", voice)
package openaispeech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/MrWong99/lexibot/pkg/provider/tts"
	"github.com/MrWong99/lexibot/pkg/types"
)

const (
	defaultModel   = "gpt-4o-mini-tts"
	defaultVoice   = "alloy"
	defaultTimeout = 60 * time.Second
)

// Option is a functional option for configuring a Renderer.
type Option func(*Renderer)

// WithModel sets the speech model. Defaults to "gpt-4o-mini-tts".
func WithModel(model string) Option {
	return func(r *Renderer) { r.model = model }
}

// WithBaseURL overrides the API endpoint, e.g. for an Azure deployment.
func WithBaseURL(url string) Option {
	return func(r *Renderer) { r.baseURL = url }
}

// WithTimeout bounds a single synthesis request. Defaults to 60s.
func WithTimeout(d time.Duration) Option {
	return func(r *Renderer) { r.timeout = d }
}

// Renderer implements tts.Renderer against the OpenAI speech endpoint.
type Renderer struct {
	client  oai.Client
	player  tts.Player
	model   string
	baseURL string
	timeout time.Duration
}

// New creates a Renderer. The player receives the synthesised PCM and must
// block until playback finishes.
func New(apiKey string, player tts.Player, opts ...Option) (*Renderer, error) {
	if apiKey == "" {
		return nil, errors.New("openaispeech: apiKey must not be empty")
	}
	if player == nil {
		return nil, errors.New("openaispeech: player must not be nil")
	}

	r := &Renderer{
		player:  player,
		model:   defaultModel,
		timeout: defaultTimeout,
	}
	for _, o := range opts {
		o(r)
	}

	clientOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if r.baseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(r.baseURL))
	}
	r.client = oai.NewClient(clientOpts...)

	return r, nil
}

// Speak implements tts.Renderer. It synthesises text, then blocks until the
// player has finished with the audio.
func (r *Renderer) Speak(ctx context.Context, text string, voice types.VoiceProfile) error {
	if text == "" {
		return nil
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.client.Audio.Speech.New(reqCtx, buildParams(r.model, text, voice))
	if err != nil {
		return fmt.Errorf("openaispeech: synthesize: %w", err)
	}
	defer resp.Body.Close()

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("openaispeech: read audio: %w", err)
	}
	if len(audio) == 0 {
		return errors.New("openaispeech: synthesis returned no audio")
	}

	if err := r.player.Play(ctx, audio); err != nil {
		return fmt.Errorf("openaispeech: playback: %w", err)
	}
	return nil
}

// buildParams assembles the API request. PCM output keeps the player free of
// any decoding step.
func buildParams(model, text string, voice types.VoiceProfile) oai.AudioSpeechNewParams {
	voiceID := voice.ID
	if voiceID == "" {
		voiceID = defaultVoice
	}

	params := oai.AudioSpeechNewParams{
		Model:          oai.SpeechModel(model),
		Input:          text,
		Voice:          oai.AudioSpeechNewParamsVoice(voiceID),
		ResponseFormat: oai.AudioSpeechNewParamsResponseFormatPCM,
	}
	if voice.SpeedFactor != 0 {
		params.Speed = param.NewOpt(voice.SpeedFactor)
	}
	return params
}

// Compile-time assertion that Renderer satisfies tts.Renderer.
var _ tts.Renderer = (*Renderer)(nil)
