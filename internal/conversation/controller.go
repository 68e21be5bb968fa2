// Package conversation interprets inbound chat events against the stored
// session and drives the prescription, verification and answer flows.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/observability"
	"github.com/swaasthya/saathi/internal/policy"
	"github.com/swaasthya/saathi/internal/session"
	"github.com/swaasthya/saathi/internal/speech"
	"github.com/swaasthya/saathi/internal/verify"
	"github.com/swaasthya/saathi/internal/workspace"
)

// ErrUnrecognizedReply marks a reply that is not valid in the current phase.
// It is answered locally and never reaches the failure path.
var ErrUnrecognizedReply = errors.New("unrecognized reply")

const failureReplyTimeout = 10 * time.Second

type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL, dst string) (string, error)
}

type SummaryExtractor interface {
	ExtractSummary(ctx context.Context, imageURL string) (string, error)
}

type Verifier interface {
	Verify(ctx context.Context, summary, imageURL, lang string) (verify.Result, error)
}

type Answerer interface {
	Answer(ctx context.Context, summary, question, lang string) (string, error)
}

type Translator interface {
	Translate(ctx context.Context, text, target, source string) (localize.Translation, error)
}

type Synthesizer interface {
	Synthesize(ctx context.Context, text, lang string) (*speech.Asset, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, src string) (string, error)
}

// Deps are the collaborators of a Controller. Metrics may be nil.
type Deps struct {
	Sessions    session.Repository
	Messenger   messaging.Messenger
	Media       MediaFetcher
	Extractor   SummaryExtractor
	Verifier    Verifier
	Advisor     Answerer
	Translator  Translator
	Synthesizer Synthesizer
	Recognizer  Transcriber
	Metrics     *observability.Metrics
}

type Config struct {
	ScratchDir   string
	DashboardURL string
}

// Controller handles one inbound event at a time per user; the Dispatcher
// provides that serialization.
type Controller struct {
	Deps
	cfg Config
}

func NewController(deps Deps, cfg Config) *Controller {
	if cfg.DashboardURL == "" {
		cfg.DashboardURL = "https://swaasthya-saathi.vercel.app/"
	}
	return &Controller{Deps: deps, cfg: cfg}
}

// Handle processes ev. Any error that escapes the flow is logged, counted and
// answered with one generic failure reply before being returned.
func (c *Controller) Handle(ctx context.Context, ev messaging.InboundEvent) (err error) {
	start := time.Now()
	kind := eventKind(ev)
	logger := slog.With("event_id", ev.ID, "user", policy.RedactAddress(ev.From), "kind", kind)
	c.Metrics.ObserveInbound(kind)

	defer func() {
		c.Metrics.ObserveStage("event_total", time.Since(start))
		if err == nil {
			return
		}
		c.Metrics.ObserveFailure(kind)
		logger.Error("event handling failed", "error", err)
		c.sendFailure(ev.From, logger)
	}()

	return c.route(ctx, ev, logger)
}

func (c *Controller) route(ctx context.Context, ev messaging.InboundEvent, logger *slog.Logger) error {
	cmd := ev.Command()
	switch cmd {
	case "done":
		return c.reset(ctx, ev.From)
	case "link", "🔗", "📌":
		return c.send(ctx, ev.From, linkReply(c.cfg.DashboardURL), "")
	}

	s, err := session.Load(ctx, c.Sessions, ev.From)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	logger.Debug("event routed", "phase", s.Phase)

	switch s.Phase {
	case session.PhaseAwaitingLanguage:
		if cmd == "" {
			return c.send(ctx, ev.From, replyChooseLanguage, "")
		}
		err := c.selectLanguage(ctx, s, cmd)
		if errors.Is(err, ErrUnrecognizedReply) {
			logger.Info("unrecognized language reply")
			return c.send(ctx, ev.From, invalidOptionReply(), "")
		}
		return err

	case session.PhaseActive:
		switch {
		case ev.HasAudio():
			if !s.AwaitingVoice {
				return c.send(ctx, ev.From, replyVoiceNotReady, "")
			}
			return c.voiceQuestion(ctx, s, ev)
		case ev.HasImage():
			if !s.AwaitingMedicinePhoto || s.PrescriptionSummary == "" {
				return c.send(ctx, ev.From, replyAlreadyCaptured, "")
			}
			return c.checkMedicine(ctx, s, ev)
		case cmd == "2":
			return c.confirmReminder(ctx, s)
		case cmd != "":
			return c.answer(ctx, s, strings.TrimSpace(ev.Body))
		}
		return c.send(ctx, ev.From, replyAlreadyCaptured, "")

	default:
		if ev.HasImage() && s.PrescriptionSummary == "" {
			return c.capturePrescription(ctx, ev)
		}
		if ev.HasAudio() {
			return c.send(ctx, ev.From, replyVoiceNotReady, "")
		}
		return c.send(ctx, ev.From, replyWelcome, "")
	}
}

func (c *Controller) reset(ctx context.Context, userID string) error {
	var from session.Phase
	_, err := session.Update(ctx, c.Sessions, userID, func(s *session.Session) error {
		from = s.Phase
		s.Reset()
		return nil
	})
	if err != nil {
		return err
	}
	c.Metrics.ObserveTransition(string(from), string(session.PhaseInit))
	return c.send(ctx, userID, replyReset, "")
}

func (c *Controller) capturePrescription(ctx context.Context, ev messaging.InboundEvent) error {
	var summary string
	err := c.withMedia(ctx, ev, "prescription", func(path, contentType string) error {
		imageURL, err := messaging.DataURL(path, contentType)
		if err != nil {
			return err
		}
		summary, err = timed(c.Metrics, "extract_summary", func() (string, error) {
			return c.Extractor.ExtractSummary(ctx, imageURL)
		})
		return err
	})
	if err != nil {
		return err
	}

	_, err = session.Update(ctx, c.Sessions, ev.From, func(s *session.Session) error {
		s.Phase = session.PhaseAwaitingLanguage
		s.PrescriptionSummary = summary
		s.AwaitingVoice = false
		s.AwaitingMedicinePhoto = true
		return nil
	})
	if err != nil {
		return err
	}
	c.Metrics.ObserveTransition(string(session.PhaseInit), string(session.PhaseAwaitingLanguage))

	asset, err := c.synthesize(ctx, language.MenuSpeech(), language.MenuSpeechLanguage())
	if err != nil {
		return err
	}
	if asset != nil {
		if err := c.send(ctx, ev.From, replyMenuAudio, asset.URL); err != nil {
			return err
		}
	}
	if err := c.send(ctx, ev.From, language.MenuText(), ""); err != nil {
		return err
	}
	return c.send(ctx, ev.From, replyMedicineTip, "")
}

func (c *Controller) selectLanguage(ctx context.Context, s *session.Session, reply string) error {
	lang, ok := language.ByIndex(reply)
	if !ok {
		return ErrUnrecognizedReply
	}

	translated := ""
	if strings.TrimSpace(s.PrescriptionSummary) != "" {
		tr, err := timed(c.Metrics, "translate", func() (localize.Translation, error) {
			return c.Translator.Translate(ctx, s.PrescriptionSummary, lang.Code, "")
		})
		if err != nil {
			return err
		}
		translated = tr.Text
	}
	if strings.TrimSpace(translated) == "" {
		translated = s.PrescriptionSummary
	}
	if strings.TrimSpace(translated) == "" {
		translated = replyNoSummary
	}
	combined := translated + "\n\n" + language.ReminderPrompt(lang.Code)

	asset, err := c.synthesize(ctx, strings.ReplaceAll(combined, "\n\n", " "), lang)
	if err != nil {
		return err
	}
	if asset != nil {
		err = c.send(ctx, s.UserID, summaryAudioCaption(lang), asset.URL)
	} else {
		err = c.send(ctx, s.UserID, summaryTextReply(lang, combined), "")
	}
	if err != nil {
		return err
	}

	_, err = session.Update(ctx, c.Sessions, s.UserID, func(s *session.Session) error {
		s.Phase = session.PhaseActive
		s.TargetLanguage = lang
		s.AwaitingVoice = true
		return nil
	})
	if err != nil {
		return err
	}
	c.Metrics.ObserveTransition(string(session.PhaseAwaitingLanguage), string(session.PhaseActive))
	return c.send(ctx, s.UserID, replyVoiceTip, "")
}

func (c *Controller) confirmReminder(ctx context.Context, s *session.Session) error {
	lang := s.Language()
	msg := language.ReminderConfirmation(lang.Code)
	asset, err := c.synthesize(ctx, msg, lang)
	if err != nil {
		return err
	}
	return c.send(ctx, s.UserID, confirmationReply(msg), assetURL(asset))
}

func (c *Controller) voiceQuestion(ctx context.Context, s *session.Session, ev messaging.InboundEvent) error {
	var transcript string
	err := c.withMedia(ctx, ev, "voice", func(path, _ string) error {
		var err error
		transcript, err = timed(c.Metrics, "transcribe", func() (string, error) {
			return c.Recognizer.Transcribe(ctx, path)
		})
		return err
	})
	if err != nil {
		return err
	}
	if err := c.send(ctx, s.UserID, transcriptionEcho(transcript), ""); err != nil {
		return err
	}
	return c.answer(ctx, s, transcript)
}

func (c *Controller) answer(ctx context.Context, s *session.Session, question string) error {
	lang := s.Language()
	answer, err := timed(c.Metrics, "answer", func() (string, error) {
		return c.Advisor.Answer(ctx, s.PrescriptionSummary, question, lang.Code)
	})
	if err != nil {
		return err
	}
	asset, err := c.synthesize(ctx, answer, lang)
	if err != nil {
		return err
	}
	return c.send(ctx, s.UserID, answerReply(lang, answer, asset != nil), assetURL(asset))
}

func (c *Controller) checkMedicine(ctx context.Context, s *session.Session, ev messaging.InboundEvent) error {
	lang := s.Language()
	var result verify.Result
	err := c.withMedia(ctx, ev, "medicine", func(path, contentType string) error {
		imageURL, err := messaging.DataURL(path, contentType)
		if err != nil {
			return err
		}
		result, err = timed(c.Metrics, "verify", func() (verify.Result, error) {
			return c.Verifier.Verify(ctx, s.PrescriptionSummary, imageURL, lang.Code)
		})
		return err
	})
	if err != nil {
		return err
	}
	slog.Info("medicine checked",
		"event_id", ev.ID,
		"stage", result.Stage,
		"is_medicine", result.IsMedicine,
		"matches", result.MatchesPrescription,
	)

	info := result.Instructions
	if info == "" {
		info = result.Warning
	}
	if info == "" {
		info = replyNoImageInfo
	}
	asset, err := c.synthesize(ctx, info, lang)
	if err != nil {
		return err
	}
	return c.send(ctx, s.UserID, medicineReply(lang, info, asset != nil), assetURL(asset))
}

// withMedia downloads the event's media into a private scratch directory
// that is removed once fn returns.
func (c *Controller) withMedia(ctx context.Context, ev messaging.InboundEvent, name string, fn func(path, contentType string) error) error {
	return workspace.Run(c.cfg.ScratchDir, "event", func(dir workspace.Dir) error {
		path := dir.File(name + messaging.ExtensionFor(ev.MediaContentType))
		contentType, err := c.Media.Fetch(ctx, ev.MediaURL, path)
		if err != nil {
			return fmt.Errorf("fetch %s media: %w", name, err)
		}
		if contentType == "" {
			contentType = ev.MediaContentType
		}
		return fn(path, contentType)
	})
}

// synthesize renders text as audio. Missing audio and transcode failures
// degrade to a text reply by returning a nil asset.
func (c *Controller) synthesize(ctx context.Context, text string, lang language.Language) (*speech.Asset, error) {
	asset, err := timed(c.Metrics, "synthesize", func() (*speech.Asset, error) {
		return c.Synthesizer.Synthesize(ctx, text, lang.Code)
	})
	if errors.Is(err, speech.ErrNoAudio) || audio.IsTranscodeError(err) {
		slog.Warn("speech unavailable, replying with text", "lang", lang.Code, "error", err)
		c.Metrics.ObserveFallback("speech", "text")
		return nil, nil
	}
	return asset, err
}

func (c *Controller) send(ctx context.Context, to, body, mediaURL string) error {
	err := c.Messenger.Send(ctx, messaging.Reply{To: to, Body: body, MediaURL: mediaURL})
	if err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

// sendFailure uses its own context so the reply goes out even when the
// event deadline already expired.
func (c *Controller) sendFailure(to string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), failureReplyTimeout)
	defer cancel()
	if err := c.Messenger.Send(ctx, messaging.Reply{To: to, Body: replyFailure}); err != nil {
		logger.Warn("failure reply not delivered", "error", err)
	}
}

func assetURL(a *speech.Asset) string {
	if a == nil {
		return ""
	}
	return a.URL
}

func eventKind(ev messaging.InboundEvent) string {
	switch {
	case ev.HasImage():
		return "image"
	case ev.HasAudio():
		return "audio"
	case ev.HasMedia():
		return "media"
	default:
		return "text"
	}
}

func timed[T any](m *observability.Metrics, stage string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	m.ObserveStage(stage, time.Since(start))
	return v, err
}
