// Package advice answers follow-up questions about a stored prescription.
package advice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/swaasthya/saathi/internal/language"
	"github.com/swaasthya/saathi/internal/llm"
	"github.com/swaasthya/saathi/internal/localize"
)

var ErrEmptyAnswer = errors.New("model returned an empty answer")

const defaultMinWords = 260

const systemPrompt = `You are a board-certified medical doctor answering a patient's questions about their prescription.

Style and safety:
- Open with a clear one or two sentence answer.
- Follow with a friendly explanation in plain language, around 300 words in total.
- Cover what it means, why it happens, what to do at home, suitable over-the-counter options where appropriate, and when to get urgent care.
- Be evidence based. Do not give a definitive diagnosis without an examination; explain the reasonable possibilities.
- Name concrete red-flag symptoms that need an in-person visit.
- Stay calm, supportive and specific. Never alarmist.
- Keep dosing generic ("follow the label" or "follow your doctor's instructions") unless the prescription gives exact doses.
- Write at least 260 words so the spoken answer lasts about 40 seconds.`

const expandPrompt = "Please expand the explanation while keeping the same advice and safety tone. " +
	"Add detail on causes, timelines, and step-by-step self-care. Maintain plain language. Target 300–350 words."

// Translator is the localization boundary.
type Translator interface {
	Translate(ctx context.Context, text, target, source string) (localize.Translation, error)
}

type Config struct {
	Model    string
	MinWords int
}

type Advisor struct {
	llm        llm.Client
	translator Translator
	cfg        Config
}

func NewAdvisor(client llm.Client, translator Translator, cfg Config) *Advisor {
	if cfg.MinWords <= 0 {
		cfg.MinWords = defaultMinWords
	}
	return &Advisor{llm: client, translator: translator, cfg: cfg}
}

// Answer replies to question in lang, using summary as context. Short
// answers get one expansion request; translation is best effort.
func (a *Advisor) Answer(ctx context.Context, summary, question, lang string) (string, error) {
	directive := languageDirective(lang)
	user := fmt.Sprintf("Prescription summary (from the chart):\n%q\n\nPatient question:\n%q\n\n"+
		"Answer directly first, then explain with practical steps, safe self-care and red flags. %s",
		localize.SanitizePlainText(summary), strings.TrimSpace(question), directive)
	messages := []llm.Message{llm.UserText(user)}

	answer, err := a.complete(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("answer question: %w", err)
	}
	if answer == "" {
		return "", ErrEmptyAnswer
	}

	if words := len(strings.Fields(answer)); words < a.cfg.MinWords {
		expanded, err := a.complete(ctx, append(messages,
			llm.AssistantText(answer),
			llm.UserText(expandPrompt+" "+directive),
		))
		switch {
		case err != nil:
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			slog.Warn("answer expansion failed", "words", words, "error", err)
		case expanded != "":
			answer = expanded
		}
	}

	return a.finalize(ctx, answer, lang), nil
}

func (a *Advisor) complete(ctx context.Context, messages []llm.Message) (string, error) {
	out, err := a.llm.Complete(ctx, llm.Request{
		Model:       a.cfg.Model,
		System:      systemPrompt,
		Messages:    messages,
		Temperature: 0.4,
		TopP:        0.9,
		MaxTokens:   1024,
	})
	if err != nil {
		return "", err
	}
	return localize.SanitizePlainText(out), nil
}

// finalize forces the target language and makes numerals speakable.
func (a *Advisor) finalize(ctx context.Context, text, lang string) string {
	if a.translator != nil && language.BaseCode(lang) != "en" {
		out, err := a.translator.Translate(ctx, text, lang, "auto")
		if err == nil && strings.TrimSpace(out.Text) != "" {
			return out.Text
		}
		if err != nil {
			slog.Warn("answer translation failed", "lang", lang, "error", err)
		}
	}
	return localize.SanitizePlainText(localize.Localize(text, lang))
}

func languageDirective(lang string) string {
	name := lang
	if l, ok := language.ByCode(lang); ok {
		name = l.Label
	}
	return fmt.Sprintf("Answer ONLY in %s. Use natural, patient-friendly %s in its usual script. "+
		"No markdown or special characters like *, |, _, ~, or `. Only plain sentences.", name, name)
}
