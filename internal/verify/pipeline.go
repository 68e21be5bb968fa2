// Package verify checks a photographed medicine against the stored
// prescription summary.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/localize"
	"github.com/swaasthya/saathi/internal/reliability"
)

// Stage names the pass that produced a result.
type Stage string

const (
	StageVision Stage = "vision"
	StageOCR    Stage = "ocr"
)

// Result is the verdict for one medicine photo. When IsMedicine is true and
// MatchesPrescription is false, Instructions is empty and Warning is set.
type Result struct {
	IsMedicine          bool   `json:"is_medicine"`
	MatchesPrescription bool   `json:"matches_prescription"`
	MedicineName        string `json:"medicine_name"`
	Instructions        string `json:"instructions"`
	Warning             string `json:"warning"`
	Stage               Stage  `json:"stage"`
}

// Inconclusive reports whether the OCR pass should take a second look.
func (r Result) Inconclusive() bool {
	return !r.IsMedicine || (!r.MatchesPrescription && r.Instructions == "")
}

// Translator is the localization boundary used for the final step.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) (localize.Translation, error)
}

const minOCRRunes = 3

var errTooLittleText = errors.New("ocr found too little text")

const (
	visionPrompt = `You are a pharmacist assistant.
Task:
- Look at the provided photo. First decide: is this clearly a photo of a medicine package, blister or label? Answer strictly true or false as is_medicine.
- If is_medicine is true, read any visible brand or generic name and strength into medicine_name.
- Compare with the prescription summary provided. Decide whether this medicine matches one item of the prescription, by name or reasonable generic equivalence. Answer strictly true or false as matches_prescription.

Rules:
- If the medicine matches: put the dosage instructions for that item, taken from the prescription summary only, into instructions.
- If the medicine does not match: leave instructions empty and set warning to "` + language.NotInPrescriptionWarning + `". Never explain how to take it.
- If it is not a medicine: put the visible text into instructions.

Return a single strict JSON object with keys: is_medicine (boolean), matches_prescription (boolean), medicine_name (string), instructions (string), warning (string). No other text.`

	ocrPrompt = "Extract all legible text from this image as a single plain line without newlines. No extra words."

	textPromptFormat = `You are a pharmacist assistant.
Inputs:
- Prescription summary: %s
- Text seen on package: %s

Decide whether the package text is likely a medicine label and, if so, infer the probable medicine name and strength.
Compare name and strength with the prescription summary and judge whether it matches one prescribed item.
If matched, produce plain spoken instructions for that item from the prescription summary.
If it is a medicine but does not match, leave instructions empty and set warning to "` + language.NotInPrescriptionWarning + `".
If it is not a medicine, use the extracted text as instructions.
Return strict JSON with keys: is_medicine (boolean), matches_prescription (boolean), medicine_name (string), instructions (string), warning (string). No extra text.`
)

type PipelineConfig struct {
	VisionModel string
	TextModel   string
}

type Pipeline struct {
	llm        llm.Client
	translator Translator
	cfg        PipelineConfig
	recorder   localize.FallbackRecorder
}

func NewPipeline(client llm.Client, translator Translator, cfg PipelineConfig, recorder localize.FallbackRecorder) *Pipeline {
	return &Pipeline{llm: client, translator: translator, cfg: cfg, recorder: recorder}
}

// Verify classifies the photo at imageURL against summary and localizes the
// verdict into lang. Only a failure of the vision pass is returned; the OCR
// pass and translation degrade silently.
func (p *Pipeline) Verify(ctx context.Context, summary, imageURL, lang string) (Result, error) {
	summary = localize.SanitizePlainText(summary)

	outcome, err := reliability.Chain(ctx, nil,
		reliability.Step[Result]{
			Name:     string(StageVision),
			Required: true,
			Run: func(ctx context.Context) (Result, error) {
				return p.visionPass(ctx, summary, imageURL)
			},
			Accept: func(r Result) bool { return !r.Inconclusive() },
		},
		reliability.Step[Result]{
			Name: string(StageOCR),
			Run: func(ctx context.Context) (Result, error) {
				return p.ocrPass(ctx, summary, imageURL)
			},
		},
	)
	if err != nil {
		return Result{}, fmt.Errorf("verify medicine: %w", err)
	}
	if len(outcome.Failures) > 0 {
		slog.Debug("ocr pass did not help", "error", errors.Join(outcome.Failures...))
	}
	if outcome.UsedFallback() && p.recorder != nil {
		p.recorder.ObserveFallback("verify", outcome.Step)
	}

	result := enforce(outcome.Value)
	return enforce(p.localizeResult(ctx, result, lang)), nil
}

func (p *Pipeline) visionPass(ctx context.Context, summary, imageURL string) (Result, error) {
	raw, err := p.llm.Complete(ctx, llm.Request{
		Model:       p.cfg.VisionModel,
		Messages:    []llm.Message{llm.UserImage(imageURL, visionPrompt, "Prescription summary:\n"+summary)},
		Temperature: 0.2,
		TopP:        1,
		MaxTokens:   800,
	})
	if err != nil {
		return Result{}, err
	}
	parsed := ParseModelOutput(raw)
	if parsed.Kind == Unstructured {
		slog.Warn("vision verdict was not structured", "chars", len(raw))
	}
	r := parsed.Result
	r.Stage = StageVision
	return enforce(r), nil
}

func (p *Pipeline) ocrPass(ctx context.Context, summary, imageURL string) (Result, error) {
	raw, err := p.llm.Complete(ctx, llm.Request{
		Model:       p.cfg.VisionModel,
		Messages:    []llm.Message{llm.UserImage(imageURL, ocrPrompt)},
		Temperature: 0.1,
		TopP:        1,
		MaxTokens:   512,
	})
	if err != nil {
		return Result{}, err
	}
	extracted := strings.Join(strings.Fields(localize.SanitizePlainText(raw)), " ")
	if utf8.RuneCountInString(extracted) < minOCRRunes {
		return Result{}, errTooLittleText
	}

	out, err := p.llm.Complete(ctx, llm.Request{
		Model:       p.cfg.TextModel,
		Messages:    []llm.Message{llm.UserText(fmt.Sprintf(textPromptFormat, summary, extracted))},
		Temperature: 0.2,
		TopP:        1,
		MaxTokens:   800,
	})
	if err != nil {
		return Result{}, err
	}
	parsed := ParseModelOutput(out)
	if parsed.Kind == Unstructured {
		return Result{}, errors.New("ocr verdict was not structured")
	}
	r := parsed.Result
	r.Stage = StageOCR
	return enforce(r), nil
}

// enforce applies the non-match rule: a medicine that is not on the
// prescription never carries instructions and always carries a warning.
func enforce(r Result) Result {
	if r.IsMedicine && !r.MatchesPrescription {
		r.Instructions = ""
		if strings.TrimSpace(r.Warning) == "" {
			r.Warning = language.NotInPrescriptionWarning
		}
	}
	if !r.IsMedicine && r.Instructions == "" && r.Warning == "" {
		r.Warning = UnreadableWarning
	}
	return r
}

func (p *Pipeline) localizeResult(ctx context.Context, r Result, lang string) Result {
	nonMatch := r.IsMedicine && !r.MatchesPrescription
	if nonMatch {
		// The canonical sentence is authoritative whatever the model wrote.
		r.Warning = language.NotInPrescriptionWarning
	}
	if r.Instructions != "" {
		r.Instructions = p.translate(ctx, r.Instructions, lang)
	}
	if r.Warning != "" {
		translated := p.translate(ctx, r.Warning, lang)
		if nonMatch && (translated == language.NotInPrescriptionWarning || translated == "") {
			translated = localize.Localize(language.LocalizedNotInPrescriptionWarning(lang), lang)
		}
		r.Warning = translated
	}
	return r
}

// translate returns text in lang, or the original text, localized, when
// translation fails.
func (p *Pipeline) translate(ctx context.Context, text, lang string) string {
	if p.translator == nil || language.BaseCode(lang) == "en" {
		return localize.Localize(localize.SanitizePlainText(text), lang)
	}
	out, err := p.translator.Translate(ctx, text, lang, "auto")
	if err != nil || strings.TrimSpace(out.Text) == "" {
		if err != nil {
			slog.Warn("verification translation failed", "lang", lang, "error", err)
		}
		return localize.Localize(localize.SanitizePlainText(text), lang)
	}
	return out.Text
}
