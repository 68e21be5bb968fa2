package verify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/swaasthya/saathi/internal/localize"
)

// UnreadableWarning is used whenever the model output cannot be understood.
const UnreadableWarning = "Unable to read the image. Please send a clear photo of the medicine front label."

const resultSchema = `{
  "type": "object",
  "required": ["is_medicine", "matches_prescription"],
  "properties": {
    "is_medicine":          {"type": ["boolean", "string"]},
    "matches_prescription": {"type": ["boolean", "string"]},
    "medicine_name":        {"type": ["string", "null"]},
    "instructions":         {"type": ["string", "null"]},
    "warning":              {"type": ["string", "null"]}
  }
}`

var resultValidator = mustSchema(resultSchema)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("verify: invalid result schema: %v", err))
	}
	return schema
}

// OutcomeKind tags how a model response was interpreted.
type OutcomeKind int

const (
	Unstructured OutcomeKind = iota
	Structured
)

func (k OutcomeKind) String() string {
	if k == Structured {
		return "structured"
	}
	return "unstructured"
}

// ParseOutcome is the tagged result of reading a model response. An
// Unstructured outcome always carries SafeDefault() as its Result.
type ParseOutcome struct {
	Kind   OutcomeKind
	Raw    string
	Result Result
	// Recovered is set when the object had to be cut out of surrounding text.
	Recovered bool
}

// SafeDefault is the result used when nothing could be parsed.
func SafeDefault() Result {
	return Result{Warning: UnreadableWarning}
}

// ParseModelOutput reads a verification verdict from model text. The whole
// response is expected to be one JSON object matching the result schema.
// As a last resort a trailing {...} object is cut out of conversational text.
func ParseModelOutput(raw string) ParseOutcome {
	text := strings.TrimSpace(stripCodeFence(raw))
	if r, ok := decodeResult(text); ok {
		return ParseOutcome{Kind: Structured, Raw: raw, Result: r}
	}
	if strings.HasSuffix(text, "}") {
		for i := strings.IndexByte(text, '{'); i >= 0; {
			if r, ok := decodeResult(text[i:]); ok {
				return ParseOutcome{Kind: Structured, Raw: raw, Result: r, Recovered: true}
			}
			next := strings.IndexByte(text[i+1:], '{')
			if next < 0 {
				break
			}
			i += next + 1
		}
	}
	return ParseOutcome{Kind: Unstructured, Raw: raw, Result: SafeDefault()}
}

func decodeResult(text string) (Result, bool) {
	if !strings.HasPrefix(text, "{") {
		return Result{}, false
	}
	res, err := resultValidator.Validate(gojsonschema.NewStringLoader(text))
	if err != nil || !res.Valid() {
		return Result{}, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil {
		return Result{}, false
	}
	isMedicine, ok1 := asBool(obj["is_medicine"])
	matches, ok2 := asBool(obj["matches_prescription"])
	if !ok1 || !ok2 {
		return Result{}, false
	}
	return Result{
		IsMedicine:          isMedicine,
		MatchesPrescription: matches,
		MedicineName:        strings.TrimSpace(asString(obj["medicine_name"])),
		Instructions:        localize.SanitizePlainText(asString(obj["instructions"])),
		Warning:             localize.SanitizePlainText(asString(obj["warning"])),
	}, true
}

func asBool(v any) (bool, bool) {
	switch b := v.(type) {
	case bool:
		return b, true
	case string:
		switch strings.ToLower(strings.TrimSpace(b)) {
		case "true", "yes", "y":
			return true, true
		case "false", "no", "n", "":
			return false, true
		}
	}
	return false, false
}

func asString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
