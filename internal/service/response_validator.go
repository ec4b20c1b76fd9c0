package service

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/noah-isme/cefr-placement-api/internal/assessment"
	"github.com/noah-isme/cefr-placement-api/pkg/llm"
)

// DefaultFinalReason is used when the model does not explain its final decision.
const DefaultFinalReason = "Final level determined based on comprehensive analysis"

const schemaBaseURL = "mem://cefr/schemas/"

//go:embed schemas/*.json
var responseSchemas embed.FS

// NormalizedEvaluation is the first-round model output after shape resolution.
type NormalizedEvaluation struct {
	Level         assessment.Level
	Scores        assessment.Scores
	Reason        string
	Feedback      []assessment.Feedback
	NextQuestions []string
}

// FinalDecision is the second-round model output.
type FinalDecision struct {
	Level  string
	Reason string
}

type responseShape int

const (
	shapeUnknown responseShape = iota
	shapeNested
	shapeFlat
)

type oracleScores struct {
	Grammar    float64 `json:"grammar" validate:"min=0,max=10"`
	Vocabulary float64 `json:"vocabulary" validate:"min=0,max=10"`
	Fluency    float64 `json:"fluency" validate:"min=0,max=10"`
}

type oracleFeedback struct {
	Question       string       `json:"question"`
	Answer         string       `json:"answer"`
	EstimatedLevel string       `json:"estimated_level"`
	Scores         oracleScores `json:"scores"`
	Mistakes       []string     `json:"mistakes"`
	Suggestions    []string     `json:"suggestions"`
}

type oracleEvaluation struct {
	Level         string           `json:"level"`
	Scores        oracleScores     `json:"scores"`
	Reason        string           `json:"reason"`
	Feedback      []oracleFeedback `json:"feedback" validate:"dive"`
	NextQuestions []string         `json:"next_questions"`
}

type oracleEnvelope struct {
	Evaluation    oracleEvaluation `json:"evaluation"`
	NextQuestions []string         `json:"next_questions"`
}

// ResponseValidator resolves the shape of the model's first-round answer and
// rejects anything it cannot map without guessing.
type ResponseValidator struct {
	nested   *jsonschema.Schema
	flat     *jsonschema.Schema
	validate *validator.Validate
}

// NewResponseValidator compiles the embedded response schemas.
func NewResponseValidator(validate *validator.Validate) (*ResponseValidator, error) {
	if validate == nil {
		validate = validator.New(validator.WithRequiredStructEnabled())
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	for _, name := range []string{"feedback.schema.json", "initial_nested.schema.json", "initial_flat.schema.json"} {
		content, err := responseSchemas.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read response schema %s: %w", name, err)
		}
		if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(content)); err != nil {
			return nil, fmt.Errorf("register response schema %s: %w", name, err)
		}
	}

	nested, err := compiler.Compile(schemaBaseURL + "initial_nested.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile nested response schema: %w", err)
	}
	flat, err := compiler.Compile(schemaBaseURL + "initial_flat.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile flat response schema: %w", err)
	}

	return &ResponseValidator{nested: nested, flat: flat, validate: validate}, nil
}

// Normalize parses raw model output into a NormalizedEvaluation. The nested form
// {evaluation:{...}, next_questions} and the flat form normalize identically.
// Every failure is an *llm.InvalidResponseError carrying the raw text.
func (v *ResponseValidator) Normalize(raw string) (NormalizedEvaluation, error) {
	document, err := decodeDocument(raw)
	if err != nil {
		return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "response is not valid JSON", err)
	}

	object, ok := document.(map[string]interface{})
	if !ok {
		return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "response is not a JSON object", nil)
	}

	var payload oracleEvaluation
	switch detectShape(object) {
	case shapeNested:
		if err := v.nested.Validate(document); err != nil {
			return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "nested response does not match schema", err)
		}
		var envelope oracleEnvelope
		if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
			return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "decode nested response", err)
		}
		payload = envelope.Evaluation
		payload.NextQuestions = envelope.NextQuestions
	case shapeFlat:
		if err := v.flat.Validate(document); err != nil {
			return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "flat response does not match schema", err)
		}
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "decode flat response", err)
		}
	default:
		invalid := llm.NewInvalidResponseError(raw, "unexpected JSON structure", nil)
		invalid.Keys = sortedKeys(object)
		return NormalizedEvaluation{}, invalid
	}

	if err := v.validate.Struct(payload); err != nil {
		return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "scores out of range", err)
	}

	return toNormalized(raw, payload)
}

// ParseFinalDecision reads the second-round answer. A JSON object carrying
// final_level is used as is; any other text is taken as the level itself.
func ParseFinalDecision(raw string) FinalDecision {
	trimmed := strings.TrimSpace(raw)

	var decoded map[string]interface{}
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if level, ok := decoded["final_level"].(string); ok {
			reason, ok := decoded["reason"].(string)
			if !ok {
				reason = DefaultFinalReason
			}
			return FinalDecision{Level: strings.TrimSpace(level), Reason: reason}
		}
	}

	return FinalDecision{Level: trimmed, Reason: DefaultFinalReason}
}

func decodeDocument(raw string) (interface{}, error) {
	decoder := json.NewDecoder(strings.NewReader(raw))
	decoder.UseNumber()

	var document interface{}
	if err := decoder.Decode(&document); err != nil {
		return nil, err
	}
	if err := decoder.Decode(new(interface{})); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after JSON value")
	}
	return document, nil
}

func detectShape(object map[string]interface{}) responseShape {
	if hasKeys(object, "evaluation", "next_questions") {
		return shapeNested
	}
	if hasKeys(object, "level", "scores", "feedback") {
		return shapeFlat
	}
	return shapeUnknown
}

func hasKeys(object map[string]interface{}, keys ...string) bool {
	for _, key := range keys {
		if _, ok := object[key]; !ok {
			return false
		}
	}
	return true
}

func sortedKeys(object map[string]interface{}) []string {
	keys := make([]string, 0, len(object))
	for key := range object {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func toNormalized(raw string, payload oracleEvaluation) (NormalizedEvaluation, error) {
	overall, err := assessment.NewScores(payload.Scores.Grammar, payload.Scores.Vocabulary, payload.Scores.Fluency)
	if err != nil {
		return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, "invalid overall scores", err)
	}

	feedback := make([]assessment.Feedback, 0, len(payload.Feedback))
	for idx, item := range payload.Feedback {
		scores, err := assessment.NewScores(item.Scores.Grammar, item.Scores.Vocabulary, item.Scores.Fluency)
		if err != nil {
			return NormalizedEvaluation{}, llm.NewInvalidResponseError(raw, fmt.Sprintf("invalid scores in feedback %d", idx), err)
		}
		feedback = append(feedback, assessment.Feedback{
			Question:       item.Question,
			Answer:         item.Answer,
			EstimatedLevel: assessment.Level(strings.TrimSpace(item.EstimatedLevel)),
			Scores:         scores,
			Mistakes:       nonNil(item.Mistakes),
			Suggestions:    nonNil(item.Suggestions),
		})
	}

	return NormalizedEvaluation{
		Level:         assessment.Level(strings.TrimSpace(payload.Level)),
		Scores:        overall,
		Reason:        payload.Reason,
		Feedback:      feedback,
		NextQuestions: nonNil(payload.NextQuestions),
	}, nil
}

func nonNil(items []string) []string {
	if items == nil {
		return []string{}
	}
	return items
}
