package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/mytalk-labs/mytalk/internal/script"
)

// Config selects engines and voices for a Synthesizer.
type Config struct {
	// Engine is tried first. Defaults to "openai".
	Engine string

	// Fallback lists the engines to try after Engine, in order. When nil,
	// the remaining known engines are used in their default order.
	Fallback []string

	// Voice and Voice2 are the requested primary and secondary voices.
	// Each engine maps them to names it accepts.
	Voice  string
	Voice2 string

	// Timeout bounds one synthesis attempt. Defaults to DefaultTimeout.
	Timeout time.Duration

	OpenAIKey string
	GoogleKey string

	Cache  Cache
	Logger *slog.Logger
}

// Synthesizer renders text to audio, walking its engine chain until one
// succeeds.
type Synthesizer struct {
	order   []Engine
	voice   string
	voice2  string
	timeout time.Duration
	cache   Cache
	logger  *slog.Logger
}

// NewSynthesizer builds a Synthesizer over the standard engines.
func NewSynthesizer(cfg Config) (*Synthesizer, error) {
	engines := []Engine{
		NewOpenAIEngine(cfg.OpenAIKey, ""),
		NewGoogleEngine(cfg.GoogleKey),
		NewEdgeEngine(),
		NewSystemEngine(),
	}
	return newSynthesizer(engines, cfg)
}

func newSynthesizer(engines []Engine, cfg Config) (*Synthesizer, error) {
	byName := make(map[string]Engine, len(engines))
	canonical := make([]string, 0, len(engines))
	for _, eng := range engines {
		byName[eng.Name()] = eng
		canonical = append(canonical, eng.Name())
	}

	preferred := strings.ToLower(strings.TrimSpace(cfg.Engine))
	if preferred == "" {
		preferred = canonical[0]
	}
	names := append([]string{preferred}, cfg.Fallback...)
	if cfg.Fallback == nil {
		for _, name := range canonical {
			if name != preferred {
				names = append(names, name)
			}
		}
	}

	seen := make(map[string]bool, len(names))
	order := make([]Engine, 0, len(names))
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if seen[name] {
			continue
		}
		eng, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("unknown tts engine: %q", name)
		}
		seen[name] = true
		order = append(order, eng)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Synthesizer{
		order:   order,
		voice:   cfg.Voice,
		voice2:  cfg.Voice2,
		timeout: timeout,
		cache:   cfg.Cache,
		logger:  logger,
	}, nil
}

// EngineStatus describes one engine in the chain for display.
type EngineStatus struct {
	Name   string
	Format string
	Ready  bool
	Detail string
	Voices []string
}

// Engines reports the chain in fallback order.
func (s *Synthesizer) Engines() []EngineStatus {
	statuses := make([]EngineStatus, 0, len(s.order))
	for _, eng := range s.order {
		st := EngineStatus{
			Name:   eng.Name(),
			Format: eng.Format(),
			Ready:  true,
			Voices: eng.Voices(),
		}
		if err := eng.Available(); err != nil {
			st.Ready = false
			st.Detail = err.Error()
		}
		statuses = append(statuses, st)
	}
	return statuses
}

type utterance struct {
	text string
	slot Slot
}

// Speak renders text in the primary voice.
func (s *Synthesizer) Speak(ctx context.Context, text string) (*Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errors.New("nothing to speak")
	}
	return s.speakAll(ctx, []utterance{{text: text, slot: SlotPrimary}})
}

// SpeakDialogue renders speaker turns in alternating voices. Host and
// narrator turns use the primary voice, guest turns the secondary one.
// Engines that cannot concatenate segments render the whole dialogue as
// one utterance in the primary voice instead.
func (s *Synthesizer) SpeakDialogue(ctx context.Context, lines []script.Line) (*Result, error) {
	utts := make([]utterance, 0, len(lines))
	for _, line := range lines {
		text := strings.TrimSpace(line.Text)
		if text == "" {
			continue
		}
		slot := SlotPrimary
		if line.Role == script.RoleGuest {
			slot = SlotSecondary
		}
		utts = append(utts, utterance{text: text, slot: slot})
	}
	if len(utts) == 0 {
		return nil, errors.New("dialogue has no speakable lines")
	}
	return s.speakAll(ctx, utts)
}

// speakAll renders every utterance with a single engine so the segments
// share one format, then concatenates them. MP3 frames append cleanly;
// for other formats the utterances are flattened to one segment first.
func (s *Synthesizer) speakAll(ctx context.Context, utts []utterance) (*Result, error) {
	var errs []error
	for _, eng := range s.order {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := eng.Available(); err != nil {
			s.logger.Debug("tts engine unavailable", "engine", eng.Name(), "reason", err)
			errs = append(errs, fmt.Errorf("%s: %w", eng.Name(), err))
			continue
		}

		res, err := s.speakWith(ctx, eng, utts)
		if err != nil {
			s.logger.Warn("tts engine failed", "engine", eng.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", eng.Name(), err))
			continue
		}
		return res, nil
	}
	return nil, fmt.Errorf("speech synthesis failed: %w", errors.Join(errs...))
}

func (s *Synthesizer) speakWith(ctx context.Context, eng Engine, utts []utterance) (*Result, error) {
	if eng.Format() != FormatMP3 && len(utts) > 1 {
		joined := make([]string, 0, len(utts))
		for _, u := range utts {
			joined = append(joined, u.text)
		}
		utts = []utterance{{text: strings.Join(joined, "\n"), slot: SlotPrimary}}
	}

	var audio bytes.Buffer
	for _, utt := range utts {
		data, err := s.speakOne(ctx, eng, utt)
		if err != nil {
			return nil, err
		}
		audio.Write(data)
	}

	return &Result{
		Audio:  audio.Bytes(),
		Format: eng.Format(),
		Engine: eng.Name(),
		Voice:  s.resolve(eng, SlotPrimary),
	}, nil
}

func (s *Synthesizer) speakOne(ctx context.Context, eng Engine, utt utterance) ([]byte, error) {
	voice := s.resolve(eng, utt.slot)
	key := CacheKey(eng.Name(), voice, utt.text)
	if s.cache != nil {
		if data, format, ok := s.cache.Get(key); ok && format == eng.Format() {
			s.logger.Debug("tts cache hit", "engine", eng.Name(), "voice", voice)
			return data, nil
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	data, err := eng.Synthesize(attemptCtx, utt.text, voice)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("engine returned no audio")
	}

	if s.cache != nil {
		if err := s.cache.Put(key, eng.Format(), data); err != nil {
			s.logger.Warn("tts cache write failed", "error", err)
		}
	}
	return data, nil
}

func (s *Synthesizer) resolve(eng Engine, slot Slot) string {
	requested := s.voice
	if slot == SlotSecondary {
		requested = s.voice2
	}
	return eng.ResolveVoice(requested, slot)
}
