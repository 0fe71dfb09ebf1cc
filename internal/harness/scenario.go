package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/rulebridge/internal/config"
)

// Scenario is one scripted session against a rule environment.
// Rules are loaded, objects registered and the engine reset before the
// flow runs; assertions are checked against the final trace, world and
// journal.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Rules lists construct files to load, relative to the scenario file.
	Rules []string `yaml:"rules,omitempty"`

	// Constructs are inline constructs built after the rule files.
	Constructs []string `yaml:"constructs,omitempty"`

	// Objects are host objects registered before the run.
	Objects []config.Object `yaml:"objects,omitempty"`

	// Facts and Instances are added after the initial reset.
	Facts     []string `yaml:"facts,omitempty"`
	Instances []string `yaml:"instances,omitempty"`

	// Flow is executed in order. Each step performs exactly one operation.
	Flow []FlowStep `yaml:"flow"`

	// Assertions validate the final state.
	Assertions []Assertion `yaml:"assertions,omitempty"`
}

// FlowStep is one operation. Exactly one of the operation fields is set.
type FlowStep struct {
	Eval           string    `yaml:"eval,omitempty"`
	Assert         string    `yaml:"assert,omitempty"`
	Run            *int64    `yaml:"run,omitempty"`
	Reset          bool      `yaml:"reset,omitempty"`
	Tick           *int      `yaml:"tick,omitempty"`
	MakeInstance   string    `yaml:"make_instance,omitempty"`
	DeleteInstance string    `yaml:"delete_instance,omitempty"`
	UnmakeInstance string    `yaml:"unmake_instance,omitempty"`
	GetSlot        *SlotStep `yaml:"get_slot,omitempty"`
	SetSlot        *SlotStep `yaml:"set_slot,omitempty"`

	// Expect is the expected result in host JSON, e.g. "15" or
	// '{"vector2":[1.0,2.0]}'. Empty means the result is not checked.
	Expect string `yaml:"expect,omitempty"`

	// ExpectError is a substring the step's error must contain. Empty
	// means the step must succeed.
	ExpectError string `yaml:"expect_error,omitempty"`
}

// SlotStep addresses one instance slot.
type SlotStep struct {
	Instance  string `yaml:"instance"`
	Slot      string `yaml:"slot"`
	Value     any    `yaml:"value,omitempty"`
	AsSymbols bool   `yaml:"as_symbols,omitempty"`
}

// Op returns the operation name of the step, or "" when none is set.
func (s FlowStep) Op() string {
	ops := s.ops()
	if len(ops) != 1 {
		return ""
	}
	return ops[0]
}

func (s FlowStep) ops() []string {
	var ops []string
	if s.Eval != "" {
		ops = append(ops, OpEval)
	}
	if s.Assert != "" {
		ops = append(ops, OpAssert)
	}
	if s.Run != nil {
		ops = append(ops, OpRun)
	}
	if s.Reset {
		ops = append(ops, OpReset)
	}
	if s.Tick != nil {
		ops = append(ops, OpTick)
	}
	if s.MakeInstance != "" {
		ops = append(ops, OpMakeInstance)
	}
	if s.DeleteInstance != "" {
		ops = append(ops, OpDeleteInstance)
	}
	if s.UnmakeInstance != "" {
		ops = append(ops, OpUnmakeInstance)
	}
	if s.GetSlot != nil {
		ops = append(ops, OpGetSlot)
	}
	if s.SetSlot != nil {
		ops = append(ops, OpSetSlot)
	}
	return ops
}

// Assertion validates final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Object and Prop address a host object property (prop).
	Object int64  `yaml:"object,omitempty"`
	Prop   string `yaml:"prop,omitempty"`

	// Expect is the expected property value in host JSON (prop).
	Expect string `yaml:"expect,omitempty"`

	// Text is a substring of some printed line (output_contains).
	Text string `yaml:"text,omitempty"`

	// Kind filters diagnostics (diagnostic_count).
	Kind string `yaml:"kind,omitempty"`

	// Count is the expected number of diagnostics or queued pipelines.
	Count int `yaml:"count"`

	// Step and Status check a journaled step (step_status).
	Step   int64  `yaml:"step,omitempty"`
	Status string `yaml:"status,omitempty"`
}

// Assertion type constants.
const (
	AssertProp            = "prop"
	AssertOutputContains  = "output_contains"
	AssertDiagnosticCount = "diagnostic_count"
	AssertStepStatus      = "step_status"
	AssertPending         = "pending"
)

// LoadScenario reads and parses a scenario YAML file. Rule paths are
// resolved relative to the file. Unknown fields are rejected.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	base := filepath.Dir(path)
	for i, p := range scenario.Rules {
		if !filepath.IsAbs(p) {
			scenario.Rules[i] = filepath.Join(base, p)
		}
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Rules) == 0 && len(s.Constructs) == 0 {
		return fmt.Errorf("rules or constructs are required")
	}
	if len(s.Flow) == 0 {
		return fmt.Errorf("flow list is required and must be non-empty")
	}

	for _, p := range s.Rules {
		if _, err := os.Stat(p); os.IsNotExist(err) {
			return fmt.Errorf("rule file not found: %s", p)
		}
	}

	seen := make(map[int64]bool, len(s.Objects))
	for i, obj := range s.Objects {
		if obj.ID <= 0 {
			return fmt.Errorf("objects[%d]: id must be positive", i)
		}
		if obj.Class == "" {
			return fmt.Errorf("objects[%d]: class is required", i)
		}
		if seen[obj.ID] {
			return fmt.Errorf("objects[%d]: duplicate id %d", i, obj.ID)
		}
		seen[obj.ID] = true
	}

	for i, step := range s.Flow {
		switch ops := step.ops(); len(ops) {
		case 0:
			return fmt.Errorf("flow[%d]: no operation", i)
		case 1:
		default:
			return fmt.Errorf("flow[%d]: more than one operation: %v", i, ops)
		}
		if step.Expect != "" && step.ExpectError != "" {
			return fmt.Errorf("flow[%d]: expect and expect_error are exclusive", i)
		}
		for _, slot := range []*SlotStep{step.GetSlot, step.SetSlot} {
			if slot != nil && (slot.Instance == "" || slot.Slot == "") {
				return fmt.Errorf("flow[%d]: instance and slot are required", i)
			}
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertProp:
		if a.Object == 0 || a.Prop == "" {
			return fmt.Errorf("assertions[%d]: object and prop are required for prop", index)
		}
		if a.Expect == "" {
			return fmt.Errorf("assertions[%d]: expect is required for prop", index)
		}
	case AssertOutputContains:
		if a.Text == "" {
			return fmt.Errorf("assertions[%d]: text is required for output_contains", index)
		}
	case AssertDiagnosticCount, AssertPending:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertStepStatus:
		if a.Step <= 0 || a.Status == "" {
			return fmt.Errorf("assertions[%d]: step and status are required for step_status", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown type %q", index, a.Type)
	}
	return nil
}
