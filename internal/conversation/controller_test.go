package conversation

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/swaasthya/saathi/internal/audio"
	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/messaging"
	"github.com/swaasthya/saathi/internal/session"
	"github.com/swaasthya/saathi/internal/speech"
	"github.com/swaasthya/saathi/internal/verify"
)

const testUser = "whatsapp:+919800001234"

type recordingMessenger struct {
	mu      sync.Mutex
	replies []messaging.Reply
	fail    error
}

func (m *recordingMessenger) Send(ctx context.Context, reply messaging.Reply) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail != nil && reply.Body != replyFailure {
		return m.fail
	}
	m.replies = append(m.replies, reply)
	return nil
}

func (m *recordingMessenger) all() []messaging.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]messaging.Reply(nil), m.replies...)
}

func (m *recordingMessenger) last() messaging.Reply {
	all := m.all()
	if len(all) == 0 {
		return messaging.Reply{}
	}
	return all[len(all)-1]
}

type stubExtractor struct {
	summary string
	err     error
	calls   int
}

func (s *stubExtractor) ExtractSummary(_ context.Context, imageURL string) (string, error) {
	s.calls++
	if !strings.HasPrefix(imageURL, "data:image/") {
		return "", errors.New("expected data url")
	}
	return s.summary, s.err
}

type stubVerifier struct {
	result verify.Result
	lang   string
}

func (s *stubVerifier) Verify(_ context.Context, _, _, lang string) (verify.Result, error) {
	s.lang = lang
	return s.result, nil
}

type stubAdvisor struct {
	question string
	lang     string
}

func (s *stubAdvisor) Answer(_ context.Context, _, question, lang string) (string, error) {
	s.question = question
	s.lang = lang
	return "Drink water and rest.", nil
}

type echoTranslator struct{}

func (echoTranslator) Translate(_ context.Context, text, target, _ string) (localize.Translation, error) {
	return localize.Translation{Text: "[" + target + "] " + text, Backend: "echo"}, nil
}

type stubSynthesizer struct {
	texts []string
	err   error
}

func (s *stubSynthesizer) Synthesize(_ context.Context, text, lang string) (*speech.Asset, error) {
	s.texts = append(s.texts, lang+":"+text)
	if s.err != nil {
		return nil, s.err
	}
	return &speech.Asset{Name: "a.mp3", URL: "https://saathi.example/static/a.mp3"}, nil
}

type stubTranscriber struct {
	transcript string
	sawFile    bool
}

func (s *stubTranscriber) Transcribe(_ context.Context, src string) (string, error) {
	_, err := os.Stat(src)
	s.sawFile = err == nil
	return s.transcript, nil
}

type harness struct {
	ctrl        *Controller
	repo        *session.MemoryRepository
	messenger   *recordingMessenger
	extractor   *stubExtractor
	verifier    *stubVerifier
	advisor     *stubAdvisor
	synth       *stubSynthesizer
	transcriber *stubTranscriber
	scratch     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		repo:        session.NewMemoryRepository(),
		messenger:   &recordingMessenger{},
		extractor:   &stubExtractor{summary: "Take Paracetamol 500mg twice daily for 5 days."},
		verifier:    &stubVerifier{},
		advisor:     &stubAdvisor{},
		synth:       &stubSynthesizer{},
		transcriber: &stubTranscriber{transcript: "Can I take it with milk?"},
		scratch:     t.TempDir(),
	}
	h.ctrl = NewController(Deps{
		Sessions:    h.repo,
		Messenger:   h.messenger,
		Media:       messaging.NewMediaFetcher(messaging.MediaFetcherConfig{}),
		Extractor:   h.extractor,
		Verifier:    h.verifier,
		Advisor:     h.advisor,
		Translator:  echoTranslator{},
		Synthesizer: h.synth,
		Recognizer:  h.transcriber,
	}, Config{ScratchDir: h.scratch, DashboardURL: "https://dash.example/"})
	return h
}

func (h *harness) seed(t *testing.T, fn func(s *session.Session)) *session.Session {
	t.Helper()
	s := session.New(testUser)
	fn(s)
	if err := h.repo.Put(context.Background(), s); err != nil {
		t.Fatalf("seed Put() error = %v", err)
	}
	return s
}

func (h *harness) session(t *testing.T) *session.Session {
	t.Helper()
	s, err := session.Load(context.Background(), h.repo, testUser)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return s
}

func activeSession(s *session.Session) {
	s.Phase = session.PhaseActive
	s.PrescriptionSummary = "Take Paracetamol 500mg twice daily."
	s.TargetLanguage, _ = language.ByIndex("1")
	s.AwaitingVoice = true
	s.AwaitingMedicinePhoto = true
}

func textEvent(body string) messaging.InboundEvent {
	return messaging.InboundEvent{ID: "SM-" + body, From: testUser, Body: body}
}

func mediaEvent(contentType string, payload []byte) messaging.InboundEvent {
	return messaging.InboundEvent{
		ID:               "SM-media",
		From:             testUser,
		MediaURL:         "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(payload),
		MediaContentType: contentType,
	}
}

func TestPrescriptionImageMovesToAwaitingLanguage(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.Handle(context.Background(), mediaEvent("image/jpeg", []byte("jpeg"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}

	s := h.session(t)
	if s.Phase != session.PhaseAwaitingLanguage {
		t.Fatalf("Phase = %q, want %q", s.Phase, session.PhaseAwaitingLanguage)
	}
	if s.PrescriptionSummary == "" || !s.AwaitingMedicinePhoto || s.AwaitingVoice {
		t.Fatalf("session = %+v", s)
	}

	replies := h.messenger.all()
	if len(replies) != 3 {
		t.Fatalf("len(replies) = %d, want 3: %+v", len(replies), replies)
	}
	if replies[0].Body != replyMenuAudio || replies[0].MediaURL == "" {
		t.Fatalf("replies[0] = %+v, want spoken menu", replies[0])
	}
	if replies[1].Body != language.MenuText() {
		t.Fatalf("replies[1] = %q, want menu text", replies[1].Body)
	}
	if replies[2].Body != replyMedicineTip {
		t.Fatalf("replies[2] = %q, want medicine tip", replies[2].Body)
	}
	if len(h.synth.texts) != 1 || !strings.HasPrefix(h.synth.texts[0], "hi:") {
		t.Fatalf("synth texts = %v, want one Hindi menu", h.synth.texts)
	}
	entries, _ := os.ReadDir(h.scratch)
	if len(entries) != 0 {
		t.Fatalf("scratch dir has %d entries after event, want 0", len(entries))
	}
}

func TestLanguageReplyActivatesSession(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(s *session.Session) {
		s.Phase = session.PhaseAwaitingLanguage
		s.PrescriptionSummary = "Take one tablet daily."
		s.AwaitingMedicinePhoto = true
	})

	if err := h.ctrl.Handle(context.Background(), textEvent("5")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	s := h.session(t)
	if s.Phase != session.PhaseActive || !s.AwaitingVoice {
		t.Fatalf("session = %+v, want active and awaiting voice", s)
	}
	if s.TargetLanguage.Code != "te" || s.TargetLanguage.Label != "Telugu" {
		t.Fatalf("TargetLanguage = %+v, want Telugu", s.TargetLanguage)
	}

	if len(h.synth.texts) != 1 {
		t.Fatalf("synth texts = %v", h.synth.texts)
	}
	spoken := h.synth.texts[0]
	if !strings.HasPrefix(spoken, "te:[te] Take one tablet daily.") || !strings.Contains(spoken, language.ReminderPrompt("te")) {
		t.Fatalf("spoken = %q, want translated summary plus reminder", spoken)
	}
	if strings.Contains(spoken, "\n\n") {
		t.Fatalf("spoken text keeps paragraph breaks: %q", spoken)
	}

	replies := h.messenger.all()
	if len(replies) != 2 || !strings.Contains(replies[0].Body, "Telugu") || replies[1].Body != replyVoiceTip {
		t.Fatalf("replies = %+v", replies)
	}
}

func TestUnrecognizedLanguageReplyLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t)
	before := h.seed(t, func(s *session.Session) {
		s.Phase = session.PhaseAwaitingLanguage
		s.PrescriptionSummary = "Take one tablet daily."
	})

	if err := h.ctrl.Handle(context.Background(), textEvent("abc")); err != nil {
		t.Fatalf("Handle() error = %v, want nil", err)
	}
	after := h.session(t)
	if after.Version != before.Version || after.Phase != session.PhaseAwaitingLanguage || !after.TargetLanguage.IsZero() {
		t.Fatalf("session changed: before %+v after %+v", before, after)
	}
	got := h.messenger.last().Body
	if !strings.Contains(got, language.InvalidOption("en")) || !strings.Contains(got, language.InvalidOption("hi")) {
		t.Fatalf("reply = %q, want the error in English and Hindi", got)
	}

	if err := h.ctrl.Handle(context.Background(), textEvent("05")); err != nil {
		t.Fatalf("Handle(05) error = %v, want nil", err)
	}
	if after := h.session(t); after.Version != before.Version {
		t.Fatalf("reply 05 changed the session: %+v", after)
	}
}

func TestDoneResetsFromAnyPhase(t *testing.T) {
	for _, phase := range []session.Phase{session.PhaseInit, session.PhaseAwaitingLanguage, session.PhaseActive} {
		h := newHarness(t)
		h.seed(t, func(s *session.Session) {
			activeSession(s)
			s.Phase = phase
		})
		if err := h.ctrl.Handle(context.Background(), textEvent(" DONE ")); err != nil {
			t.Fatalf("%s: Handle() error = %v", phase, err)
		}
		s := h.session(t)
		if s.Phase != session.PhaseInit || s.PrescriptionSummary != "" || s.AwaitingVoice || s.AwaitingMedicinePhoto {
			t.Fatalf("%s: session = %+v, want reset", phase, s)
		}
		if got := h.messenger.last().Body; got != replyReset {
			t.Fatalf("%s: reply = %q", phase, got)
		}
	}
}

func TestLinkCommandKeepsState(t *testing.T) {
	for _, cmd := range []string{"link", "LINK", "🔗", "📌"} {
		h := newHarness(t)
		if err := h.ctrl.Handle(context.Background(), textEvent(cmd)); err != nil {
			t.Fatalf("Handle(%q) error = %v", cmd, err)
		}
		if !strings.Contains(h.messenger.last().Body, "https://dash.example/") {
			t.Fatalf("Handle(%q) reply = %q", cmd, h.messenger.last().Body)
		}
		if _, err := h.repo.Get(context.Background(), testUser); !errors.Is(err, session.ErrNotFound) {
			t.Fatalf("Handle(%q) stored a session, err = %v", cmd, err)
		}
	}
}

func TestReminderConfirmationInChosenLanguage(t *testing.T) {
	h := newHarness(t)
	h.seed(t, activeSession)

	if err := h.ctrl.Handle(context.Background(), textEvent("2")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	reply := h.messenger.last()
	want := "✅ " + language.ReminderConfirmation("hi")
	if reply.Body != want || reply.MediaURL == "" {
		t.Fatalf("reply = %+v, want %q with audio", reply, want)
	}
	if h.session(t).Phase != session.PhaseActive {
		t.Fatal("reminder confirmation changed the phase")
	}
}

func TestVoiceQuestionIsTranscribedAndAnswered(t *testing.T) {
	h := newHarness(t)
	h.seed(t, activeSession)

	if err := h.ctrl.Handle(context.Background(), mediaEvent("audio/ogg", []byte("ogg"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if !h.transcriber.sawFile {
		t.Fatal("transcriber did not receive the downloaded voice note")
	}
	if h.advisor.question != "Can I take it with milk?" || h.advisor.lang != "hi" {
		t.Fatalf("advisor got question %q lang %q", h.advisor.question, h.advisor.lang)
	}
	replies := h.messenger.all()
	if len(replies) != 2 {
		t.Fatalf("len(replies) = %d, want 2", len(replies))
	}
	if !strings.HasPrefix(replies[0].Body, "🗨️ Transcribed: Can I take it with milk?") {
		t.Fatalf("echo = %q", replies[0].Body)
	}
	if !strings.Contains(replies[1].Body, "Hindi") || replies[1].MediaURL == "" {
		t.Fatalf("answer reply = %+v", replies[1])
	}
}

func TestFreeTextQuestionWhileActive(t *testing.T) {
	h := newHarness(t)
	h.seed(t, activeSession)

	if err := h.ctrl.Handle(context.Background(), textEvent("Is it safe with tea?")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if h.advisor.question != "Is it safe with tea?" {
		t.Fatalf("question = %q", h.advisor.question)
	}
}

func TestVoiceBeforeActiveGetsHint(t *testing.T) {
	h := newHarness(t)
	if err := h.ctrl.Handle(context.Background(), mediaEvent("audio/ogg", []byte("ogg"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if got := h.messenger.last().Body; got != replyVoiceNotReady {
		t.Fatalf("reply = %q, want voice hint", got)
	}
	if h.transcriber.sawFile {
		t.Fatal("voice note transcribed outside the active phase")
	}
}

func TestMedicineMismatchSpeaksWarning(t *testing.T) {
	h := newHarness(t)
	h.seed(t, activeSession)
	warning := language.LocalizedNotInPrescriptionWarning("hi")
	h.verifier.result = verify.Result{IsMedicine: true, MedicineName: "Ibuprofen", Warning: warning, Stage: verify.StageVision}

	if err := h.ctrl.Handle(context.Background(), mediaEvent("image/png", []byte("png"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if h.verifier.lang != "hi" {
		t.Fatalf("verify lang = %q, want hi", h.verifier.lang)
	}
	if len(h.synth.texts) != 1 || h.synth.texts[0] != "hi:"+warning {
		t.Fatalf("synth texts = %v, want warning only", h.synth.texts)
	}
	if h.extractor.calls != 0 {
		t.Fatal("medicine photo was treated as a prescription")
	}
}

func TestImageWithoutMedicineFlagIsNotVerified(t *testing.T) {
	h := newHarness(t)
	h.seed(t, func(s *session.Session) {
		activeSession(s)
		s.AwaitingMedicinePhoto = false
	})
	if err := h.ctrl.Handle(context.Background(), mediaEvent("image/png", []byte("png"))); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	if h.verifier.lang != "" || h.extractor.calls != 0 {
		t.Fatal("image was processed without the medicine flag")
	}
	if got := h.messenger.last().Body; got != replyAlreadyCaptured {
		t.Fatalf("reply = %q", got)
	}
}

func TestTranscodeFailureFallsBackToText(t *testing.T) {
	h := newHarness(t)
	h.seed(t, activeSession)
	h.synth.err = &audio.TranscodeError{Op: "encode", Err: errors.New("no lame")}

	if err := h.ctrl.Handle(context.Background(), textEvent("Is it safe with tea?")); err != nil {
		t.Fatalf("Handle() error = %v", err)
	}
	reply := h.messenger.last()
	if reply.MediaURL != "" || !strings.HasSuffix(reply.Body, "Drink water and rest.") {
		t.Fatalf("reply = %+v, want text answer", reply)
	}
}

func TestUpstreamFailureSendsGenericReply(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = errors.New("vision down")

	err := h.ctrl.Handle(context.Background(), mediaEvent("image/jpeg", []byte("jpeg")))
	if err == nil {
		t.Fatal("Handle() error = nil, want upstream failure")
	}
	if got := h.messenger.last().Body; got != replyFailure {
		t.Fatalf("reply = %q, want failure reply", got)
	}
	if h.session(t).Phase != session.PhaseInit {
		t.Fatal("failed extraction changed the phase")
	}
}

func TestFailureReplySurvivesExpiredContext(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.ctrl.Handle(ctx, textEvent("hello")); err == nil {
		t.Fatal("Handle() error = nil, want context failure")
	}
	if got := h.messenger.last().Body; got != replyFailure {
		t.Fatalf("reply = %q, want failure reply", got)
	}
}

func TestDeliveryFailureStillAttemptsFailureReply(t *testing.T) {
	h := newHarness(t)
	h.messenger.fail = errors.New("gateway down")

	if err := h.ctrl.Handle(context.Background(), textEvent("hello")); err == nil {
		t.Fatal("Handle() error = nil, want send failure")
	}
	if got := h.messenger.all(); len(got) != 1 || got[0].Body != replyFailure {
		t.Fatalf("replies = %+v, want only the failure reply", got)
	}
}
