// Package prompts renders the grading prompts sent to the language model.
// Templates are embedded in the binary and may be overridden from a directory
// holding files with the same names.
package prompts

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"text/template"

	"github.com/noah-isme/cefr-placement-api/internal/models"
)

const (
	initialTemplate = "initial_evaluation.tmpl"
	finalTemplate   = "final_evaluation.tmpl"

	// DefaultFollowUpCount is the number of second-round questions requested from the model.
	DefaultFollowUpCount = 5
)

// InitialSchemaHint is passed to the model as a system instruction when the
// first-round response must be structured.
const InitialSchemaHint = `Reply with JSON only. Top-level keys: level, scores, reason, feedback, next_questions. ` +
	`scores has grammar, vocabulary and fluency between 0 and 10. ` +
	`Each feedback item has question, answer, estimated_level, scores, mistakes, suggestions.`

//go:embed templates/*.tmpl
var embedded embed.FS

// InitialData parameterizes the first-round prompt.
type InitialData struct {
	Questions     map[uint]string
	Answers       map[uint]string
	FollowUpCount int
}

// QuestionAnswer pairs a follow-up question with the answer given in the second round.
type QuestionAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// FinalData parameterizes the second-round prompt.
type FinalData struct {
	PreviousEvaluation      models.EvaluationContext
	NewAnswersWithQuestions []QuestionAnswer
}

// Renderer executes the parsed prompt templates.
type Renderer struct {
	initial *template.Template
	final   *template.Template
}

// Load parses the embedded templates. When overrideDir is non-empty, templates
// found there replace the embedded ones of the same name.
func Load(overrideDir string) (*Renderer, error) {
	var source fs.FS
	sub, err := fs.Sub(embedded, "templates")
	if err != nil {
		return nil, fmt.Errorf("open embedded templates: %w", err)
	}
	source = sub

	if dir := strings.TrimSpace(overrideDir); dir != "" {
		source = overlayFS{primary: os.DirFS(dir), fallback: sub}
	}

	initial, err := parse(source, initialTemplate)
	if err != nil {
		return nil, err
	}
	final, err := parse(source, finalTemplate)
	if err != nil {
		return nil, err
	}

	return &Renderer{initial: initial, final: final}, nil
}

// MustLoad is Load for the embedded templates, panicking on error.
func MustLoad() *Renderer {
	renderer, err := Load("")
	if err != nil {
		panic(err)
	}
	return renderer
}

// Initial renders the first-round grading prompt.
func (r *Renderer) Initial(data InitialData) (string, error) {
	if data.FollowUpCount <= 0 {
		data.FollowUpCount = DefaultFollowUpCount
	}
	if data.Questions == nil {
		data.Questions = map[uint]string{}
	}
	if data.Answers == nil {
		data.Answers = map[uint]string{}
	}
	return execute(r.initial, data)
}

// Final renders the second-round synthesis prompt.
func (r *Renderer) Final(data FinalData) (string, error) {
	if data.NewAnswersWithQuestions == nil {
		data.NewAnswersWithQuestions = []QuestionAnswer{}
	}
	return execute(r.final, data)
}

func parse(source fs.FS, name string) (*template.Template, error) {
	content, err := fs.ReadFile(source, name)
	if err != nil {
		return nil, fmt.Errorf("read prompt template %s: %w", name, err)
	}

	tmpl, err := template.New(name).Funcs(funcMap()).Option("missingkey=error").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("parse prompt template %s: %w", name, err)
	}
	return tmpl, nil
}

func execute(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render prompt %s: %w", tmpl.Name(), err)
	}
	return buf.String(), nil
}

func funcMap() template.FuncMap {
	return template.FuncMap{
		"toJSON": func(value any) (string, error) {
			return encodeJSON(value, "")
		},
		"toIndentedJSON": func(value any) (string, error) {
			return encodeJSON(value, "  ")
		},
	}
}

// encodeJSON keeps <, > and & literal so answers reach the model as written.
func encodeJSON(value any, indent string) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if indent != "" {
		encoder.SetIndent("", indent)
	}
	if err := encoder.Encode(value); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// overlayFS serves files from primary and falls back when they are missing there.
type overlayFS struct {
	primary  fs.FS
	fallback fs.FS
}

func (o overlayFS) Open(name string) (fs.File, error) {
	file, err := o.primary.Open(name)
	if err == nil {
		return file, nil
	}
	return o.fallback.Open(name)
}
