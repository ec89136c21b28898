package wire

import (
	"encoding/json"
	"fmt"
)

// OutputType tags the variant of an Output record the guest produced.
type OutputType string

const (
	OutputError        OutputType = "error"
	OutputSessionStart OutputType = "sessionStart"
	OutputSessionEnd   OutputType = "sessionEnd"
	OutputUpdateState  OutputType = "updateState"
	OutputDoTaskIf     OutputType = "doTaskIf"
	OutputTaskDone     OutputType = "taskDone"
	OutputRandom       OutputType = "random"
	OutputAction       OutputType = "action"
)

// Output is the guest-to-host request record. It is modeled as a tagged
// union the same way the original Rust
// `#[serde(tag = "type", content = "data")]` enum is: exactly one of the
// variant-specific fields below is populated, selected by Type.
type Output struct {
	Type OutputType

	// OutputError
	ErrorMessage string

	// OutputUpdateState
	StateValue json.RawMessage

	// OutputDoTaskIf
	DoTaskIfAllowed []PlayerId

	// OutputTaskDone
	TaskDoneTargets []PlayerId
	TaskDoneValue   json.RawMessage

	// OutputRandom
	RandomStart int32
	RandomEnd   int32

	// OutputAction
	ActionFrom  PlayerId
	ActionParam json.RawMessage
}

type outputEnvelope struct {
	Type OutputType      `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type doTaskIfData struct {
	Allowed []PlayerId `json:"allowed"`
}

type taskDoneData struct {
	Targets []PlayerId      `json:"targets"`
	Value   json.RawMessage `json:"value"`
}

type randomData struct {
	Start int32 `json:"start"`
	End   int32 `json:"end"`
}

type actionData struct {
	From  PlayerId        `json:"from"`
	Param json.RawMessage `json:"param"`
}

// UnmarshalJSON decodes the adjacently tagged `{"type":...,"data":...}`
// envelope the guest emits into the flattened Output above.
func (o *Output) UnmarshalJSON(data []byte) error {
	var env outputEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	o.Type = env.Type
	switch env.Type {
	case OutputError:
		var msg string
		if err := json.Unmarshal(env.Data, &msg); err != nil {
			return fmt.Errorf("wire: error output: %w", err)
		}
		o.ErrorMessage = msg
	case OutputSessionStart, OutputSessionEnd:
		// unit variants: no data
	case OutputUpdateState:
		o.StateValue = env.Data
	case OutputDoTaskIf:
		var d doTaskIfData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("wire: doTaskIf output: %w", err)
		}
		o.DoTaskIfAllowed = d.Allowed
	case OutputTaskDone:
		var d taskDoneData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("wire: taskDone output: %w", err)
		}
		o.TaskDoneTargets = d.Targets
		o.TaskDoneValue = d.Value
	case OutputRandom:
		var d randomData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("wire: random output: %w", err)
		}
		o.RandomStart, o.RandomEnd = d.Start, d.End
	case OutputAction:
		var d actionData
		if err := json.Unmarshal(env.Data, &d); err != nil {
			return fmt.Errorf("wire: action output: %w", err)
		}
		o.ActionFrom, o.ActionParam = d.From, d.Param
	default:
		return fmt.Errorf("wire: unknown output type %q", env.Type)
	}
	return nil
}

// MarshalJSON re-encodes Output, mainly useful for tests and for the test
// client excluded from this core.
func (o Output) MarshalJSON() ([]byte, error) {
	env := outputEnvelope{Type: o.Type}
	var err error
	switch o.Type {
	case OutputError:
		env.Data, err = json.Marshal(o.ErrorMessage)
	case OutputSessionStart, OutputSessionEnd:
		// no data field
	case OutputUpdateState:
		env.Data = o.StateValue
	case OutputDoTaskIf:
		env.Data, err = json.Marshal(doTaskIfData{Allowed: o.DoTaskIfAllowed})
	case OutputTaskDone:
		env.Data, err = json.Marshal(taskDoneData{Targets: o.TaskDoneTargets, Value: o.TaskDoneValue})
	case OutputRandom:
		env.Data, err = json.Marshal(randomData{Start: o.RandomStart, End: o.RandomEnd})
	case OutputAction:
		env.Data, err = json.Marshal(actionData{From: o.ActionFrom, Param: o.ActionParam})
	default:
		return nil, fmt.Errorf("wire: unknown output type %q", o.Type)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// TaskResultType tags the host-to-guest reply to a doTaskIf/taskDone pair.
type TaskResultType string

const (
	TaskResultDoTask     TaskResultType = "doTask"
	TaskResultSyncResult TaskResultType = "syncResult"
	TaskResultRestricted TaskResultType = "restricted"
)

// TaskResult is delivered to non-acting players at taskDone fan-out time,
// and is what the guest-side library convention reads to detect it was
// outside a doTaskIf{allowed} block.
type TaskResult struct {
	Type  TaskResultType
	Value json.RawMessage // only set for TaskResultSyncResult
}

type taskResultEnvelope struct {
	Type TaskResultType  `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

func (t TaskResult) MarshalJSON() ([]byte, error) {
	env := taskResultEnvelope{Type: t.Type}
	if t.Type == TaskResultSyncResult {
		env.Data = t.Value
	}
	return json.Marshal(env)
}

func (t *TaskResult) UnmarshalJSON(data []byte) error {
	var env taskResultEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	t.Type = env.Type
	if env.Type == TaskResultSyncResult {
		t.Value = env.Data
	}
	return nil
}
