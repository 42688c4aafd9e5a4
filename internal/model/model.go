package model

import "time"

type RigMode string

const (
	RigSingle RigMode = "single"
	RigDual   RigMode = "dual"
)

// Mount is the side of the rail the distance laser is fixed to.
type Mount string

const (
	MountTop    Mount = "Top"
	MountBottom Mount = "Bottom"
)

type RunState string

const (
	StateIdle      RunState = "idle"
	StateCommanded RunState = "commanded"
	StateSettling  RunState = "settling"
	StateMeasuring RunState = "measuring"
	StateRecorded  RunState = "recorded"
)

const (
	// SuitePassed is what a completed suite reports, independent of the recorded rows.
	SuitePassed  = "PASSED"
	SuiteAborted = "ABORTED"

	HeaderPass = "PASS"
	HeaderNone = "NONE"

	DefaultShadeID = 9999
)

// SceneResult is one rail's outcome for one scene execution.
type SceneResult struct {
	RunID              string    `json:"run_id"`
	RunTime            time.Time `json:"run_time"`
	ShadeName          string    `json:"shade_name"` // rail label
	CurrentTestPassed  bool      `json:"current_test_passed"`
	AverageCurrent     float64   `json:"average_current"`
	PositionTestPassed bool      `json:"position_test_passed"`
	PassNumber         int       `json:"pass_number"`
	SceneName          string    `json:"scene_name"`
	TargetDistance     float64   `json:"target_distance"`
	Deviation          float64   `json:"deviation"`
	SceneID            string    `json:"scene_id"`
}

type HeaderRow struct {
	DateTime    time.Time `json:"date_time"`
	FirmwareRev string    `json:"firmware_rev"`
	TestName    string    `json:"test_name"`
	Result      string    `json:"result"`
	Details     string    `json:"details"`
}

// Shade is a hub shade entry with its name already decoded.
type Shade struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Tally struct {
	Rows             int `json:"rows"`
	CurrentFailures  int `json:"current_failures"`
	PositionFailures int `json:"position_failures"`
}

// Progress is a point-in-time view of a running suite.
type Progress struct {
	RunID      string       `json:"run_id"`
	State      RunState     `json:"state"`
	Scene      string       `json:"scene"`
	Pass       int          `json:"pass"`
	Tally      Tally        `json:"tally"`
	LastResult *SceneResult `json:"last_result,omitempty"`
}

type SuiteOutcome struct {
	RunID    string    `json:"run_id"`
	Result   string    `json:"result"`
	Passes   int       `json:"passes"`
	Tally    Tally     `json:"tally"`
	Started  time.Time `json:"started"`
	Finished time.Time `json:"finished"`
}

// SuiteReport is the archived summary of one suite run.
type SuiteReport struct {
	SuiteOutcome
	ShadeID     int      `json:"shade_id"`
	ShadeName   string   `json:"shade_name"`
	FirmwareRev string   `json:"firmware_rev"`
	RigMode     RigMode  `json:"rig_mode"`
	Sequence    []string `json:"sequence"`
	Error       string   `json:"error,omitempty"`
}
