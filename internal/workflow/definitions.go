package workflow

import (
	"bytes"
	_ "embed"
	"sort"
	"strings"
	"text/template"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/social-studio/internal/completion"
	"github.com/sells-group/social-studio/internal/extract"
)

//go:embed workflows.yaml
var builtinDefinitions []byte

type stageDef struct {
	Persona      completion.Persona `yaml:"persona"`
	OutputFormat string             `yaml:"output_format"`
	Task         string             `yaml:"task"`
}

type workflowDef struct {
	Model       string     `yaml:"model"`
	Temperature *float64   `yaml:"temperature"`
	TopP        *float64   `yaml:"top_p"`
	Stages      []stageDef `yaml:"stages"`
}

// Stage is one completion call of a workflow.
type Stage struct {
	Persona      completion.Persona
	OutputFormat string
	task         *template.Template
}

// stageData is what a task template sees.
type stageData struct {
	Input    string
	Outputs  []string
	Previous string
}

func (s Stage) render(input string, outputs []string) (string, error) {
	data := stageData{Input: input, Outputs: outputs}
	if len(outputs) > 0 {
		data.Previous = outputs[len(outputs)-1]
	}
	var buf bytes.Buffer
	if err := s.task.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "workflow: render task")
	}
	return buf.String(), nil
}

// Workflow pairs a fixed sequence of stages with the schema the last
// stage's reply is extracted into.
type Workflow struct {
	Kind   Kind
	Model  string
	Stages []Stage
	Schema *extract.Schema

	temperature *float64
	topP        *float64
}

// sampling applies the workflow's overrides to base.
func (w *Workflow) sampling(base completion.Sampling) completion.Sampling {
	if w.temperature != nil {
		base.Temperature = *w.temperature
	}
	if w.topP != nil {
		base.TopP = *w.topP
	}
	return base
}

// ParseDefinitions decodes workflow definitions and binds each one to its
// schema. Every known kind must be defined exactly once.
func ParseDefinitions(data []byte) (map[Kind]*Workflow, error) {
	var defs map[string]workflowDef
	if err := yaml.Unmarshal(data, &defs); err != nil {
		return nil, eris.Wrap(err, "workflow: decode definitions")
	}

	out := make(map[Kind]*Workflow, len(defs))
	for name, def := range defs {
		kind := Kind(name)
		schema, ok := Schema(kind)
		if !ok {
			return nil, eris.Errorf("workflow: no schema for kind %q", name)
		}
		wf, err := compile(kind, def, schema)
		if err != nil {
			return nil, err
		}
		out[kind] = wf
	}

	for kind := range schemas {
		if _, ok := out[kind]; !ok {
			return nil, eris.Errorf("workflow: kind %q is not defined", kind)
		}
	}
	return out, nil
}

func compile(kind Kind, def workflowDef, schema *extract.Schema) (*Workflow, error) {
	if len(def.Stages) == 0 {
		return nil, eris.Errorf("workflow: %s has no stages", kind)
	}
	if t := def.Temperature; t != nil && (*t < 0 || *t > 2) {
		return nil, eris.Errorf("workflow: %s temperature %.2f outside [0, 2]", kind, *t)
	}
	if p := def.TopP; p != nil && (*p < 0 || *p > 1) {
		return nil, eris.Errorf("workflow: %s top_p %.2f outside [0, 1]", kind, *p)
	}

	wf := &Workflow{
		Kind:        kind,
		Model:       def.Model,
		Schema:      schema,
		temperature: def.Temperature,
		topP:        def.TopP,
	}
	for i, sd := range def.Stages {
		if strings.TrimSpace(sd.Persona.Role) == "" {
			return nil, eris.Errorf("workflow: %s stage %d has no role", kind, i+1)
		}
		if strings.TrimSpace(sd.Task) == "" {
			return nil, eris.Errorf("workflow: %s stage %d has no task", kind, i+1)
		}
		tmpl, err := template.New(string(kind)).Option("missingkey=error").Parse(sd.Task)
		if err != nil {
			return nil, eris.Wrapf(err, "workflow: %s stage %d task", kind, i+1)
		}
		wf.Stages = append(wf.Stages, Stage{
			Persona:      sd.Persona,
			OutputFormat: strings.TrimSpace(sd.OutputFormat),
			task:         tmpl,
		})
	}
	return wf, nil
}

// Kinds lists the supported workflow kinds in name order.
func Kinds() []Kind {
	kinds := make([]Kind, 0, len(schemas))
	for k := range schemas {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}
