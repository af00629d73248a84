package flow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"github.com/juniormartinxo/council/internal/signature"
)

// builtinDefaultJSON is the flow used when no explicit path, FLOW_CONFIG,
// ./flow.json, or <home>/flow.json is available.
const builtinDefaultJSON = `{
  "steps": [
    {
      "key": "respond",
      "agent_name": "claude",
      "role_desc": "assistant",
      "command": "claude -p",
      "instruction": "Respond helpfully to the user's request.",
      "input_template": "{instruction}\n\n{user_prompt}"
    }
  ]
}`

type rawDocument struct {
	Steps []rawStep `json:"steps"`
}

type rawStep struct {
	Key             string `json:"key"`
	ID              string `json:"id"`
	AgentName       string `json:"agent_name"`
	Agent           string `json:"agent"`
	RoleDesc        string `json:"role_desc"`
	Role            string `json:"role"`
	Command         string `json:"command"`
	Instruction     string `json:"instruction"`
	InputTemplate   string `json:"input_template"`
	Style           string `json:"style"`
	IsCode          *bool  `json:"is_code"`
	Enabled         *bool  `json:"enabled"`
	Timeout         *int   `json:"timeout"`
	TimeoutSeconds  *int   `json:"timeout_seconds"`
	MaxInputChars   *int   `json:"max_input_chars"`
	MaxOutputChars  *int   `json:"max_output_chars"`
	MaxContextChars *int   `json:"max_context_chars"`
}

// SignatureOptions controls whether Load enforces strict signature
// verification at flow-load time.
type SignatureOptions struct {
	Strict     bool
	TrustStore *signature.TrustStore
}

// Options controls flow resolution and validation.
type Options struct {
	// ExplicitPath, when non-empty, bypasses the resolution cascade
	// entirely (e.g. --flow-config on the command line).
	ExplicitPath string
	Lookup       LookupFunc
	Signature    SignatureOptions
}

// Resolve applies the resolution cascade and returns the selected path,
// its source label, and whether it is implicit. It does not read or
// parse the file.
func Resolve(explicitPath string) (path string, source string, implicit bool) {
	if explicitPath != "" {
		return explicitPath, "explicit", false
	}
	if env := os.Getenv("FLOW_CONFIG"); env != "" {
		return env, "env:FLOW_CONFIG", true
	}
	if _, err := os.Stat("flow.json"); err == nil {
		return "flow.json", "cwd", true
	}
	if home, err := os.UserHomeDir(); err == nil {
		homePath := filepath.Join(home, "flow.json")
		if _, err := os.Stat(homePath); err == nil {
			return homePath, "home", false
		}
	}
	return "", "builtin-default", false
}

// Load resolves and parses a flow according to opts.
func Load(opts Options) (*Flow, error) {
	path, source, implicit := Resolve(opts.ExplicitPath)

	var data []byte
	var err error
	if path == "" {
		data = []byte(builtinDefaultJSON)
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, configErrorf("flow: read %s: %v", path, err)
		}
	}

	if opts.Signature.Strict && path != "" {
		if err := verifyStrict(path, data, opts.Signature.TrustStore); err != nil {
			return nil, err
		}
	}

	f, err := Parse(data, opts.Lookup)
	if err != nil {
		return nil, err
	}
	f.Source = source
	f.Implicit = implicit
	return f, nil
}

func verifyStrict(path string, fileBytes []byte, store *signature.TrustStore) error {
	sidecarPath := path + ".sig"
	sidecarBytes, err := os.ReadFile(sidecarPath)
	if err != nil {
		return configErrorf("flow: REQUIRE_FLOW_SIGNATURE is set but %s is missing", sidecarPath)
	}
	result := signature.Verify(fileBytes, sidecarBytes, store)
	if result != signature.OK {
		return configErrorf("flow: signature verification failed for %s: %s", path, result)
	}
	return nil
}

var placeholderRe = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// Parse parses and validates raw flow document bytes, accepting either a
// top-level object with a "steps" list or a bare list.
func Parse(data []byte, lookup LookupFunc) (*Flow, error) {
	if err := validateShape(data); err != nil {
		return nil, err
	}

	raws, err := parseRawSteps(data)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(raws))
	seenKeys := make(map[string]bool)

	for i, raw := range raws {
		step, err := buildStep(i, raw, lookup)
		if err != nil {
			return nil, err
		}
		if seenKeys[step.Key] {
			return nil, configErrorf("flow: duplicate step key %q", step.Key)
		}
		if Reserved[step.Key] {
			return nil, configErrorf("flow: step key %q collides with a reserved placeholder name", step.Key)
		}
		if err := validatePlaceholders(step.InputTemplate, steps); err != nil {
			return nil, err
		}
		seenKeys[step.Key] = true
		steps = append(steps, step)
	}

	return &Flow{Steps: steps}, nil
}

func parseRawSteps(data []byte) ([]rawStep, error) {
	var arr []rawStep
	if err := json.Unmarshal(data, &arr); err == nil {
		return arr, nil
	}
	var doc rawDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, configErrorf("flow: %v", err)
	}
	return doc.Steps, nil
}

func buildStep(index int, raw rawStep, lookup LookupFunc) (Step, error) {
	agentName := firstNonEmpty(raw.AgentName, raw.Agent)
	if agentName == "" {
		return Step{}, configErrorf("flow: step %d missing required agent_name", index+1)
	}
	roleDesc := firstNonEmpty(raw.RoleDesc, raw.Role)
	if roleDesc == "" {
		return Step{}, configErrorf("flow: step %d missing required role_desc", index+1)
	}
	if raw.Command == "" {
		return Step{}, configErrorf("flow: step %d missing required command", index+1)
	}
	if raw.Instruction == "" {
		return Step{}, configErrorf("flow: step %d missing required instruction", index+1)
	}

	key := firstNonEmpty(raw.Key, raw.ID)
	if key == "" {
		key = fmt.Sprintf("step_%d", index+1)
	}

	inputTemplate := raw.InputTemplate
	if inputTemplate == "" {
		inputTemplate = DefaultInputTemplate
	}

	timeout, err := positiveIntOrDefault("timeout_seconds", firstNonNilInt(raw.TimeoutSeconds, raw.Timeout), DefaultTimeoutSeconds)
	if err != nil {
		return Step{}, err
	}
	maxInput, err := positiveIntOrDefault("max_input_chars", raw.MaxInputChars, DefaultMaxInputChars)
	if err != nil {
		return Step{}, err
	}
	maxOutput, err := positiveIntOrDefault("max_output_chars", raw.MaxOutputChars, DefaultMaxOutputChars)
	if err != nil {
		return Step{}, err
	}
	maxContext, err := positiveIntOrDefault("max_context_chars", raw.MaxContextChars, DefaultMaxContextChars)
	if err != nil {
		return Step{}, err
	}

	if _, err := ValidateCommand(raw.Command, lookup); err != nil {
		return Step{}, err
	}

	enabled := true
	if raw.Enabled != nil {
		enabled = *raw.Enabled
	}
	isCode := false
	if raw.IsCode != nil {
		isCode = *raw.IsCode
	}

	return Step{
		Key:             key,
		AgentName:       agentName,
		RoleDesc:        roleDesc,
		Command:         raw.Command,
		Instruction:     raw.Instruction,
		InputTemplate:   inputTemplate,
		Style:           raw.Style,
		IsCode:          isCode,
		Enabled:         enabled,
		TimeoutSeconds:  timeout,
		MaxInputChars:   maxInput,
		MaxOutputChars:  maxOutput,
		MaxContextChars: maxContext,
	}, nil
}

func validatePlaceholders(tmpl string, priorSteps []Step) error {
	earlier := make(map[string]bool, len(priorSteps))
	for _, s := range priorSteps {
		earlier[s.Key] = true
	}
	for _, m := range placeholderRe.FindAllStringSubmatch(tmpl, -1) {
		name := m[1]
		if Reserved[name] || earlier[name] {
			continue
		}
		return configErrorf("flow: input_template references unknown placeholder %q", name)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstNonNilInt(values ...*int) *int {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func positiveIntOrDefault(field string, v *int, def int) (int, error) {
	if v == nil {
		return def, nil
	}
	if *v <= 0 {
		return 0, configErrorf("flow: %s must be a positive integer, got %d", field, *v)
	}
	return *v, nil
}
