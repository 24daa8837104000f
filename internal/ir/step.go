package ir

// Outcome classifies the result of a single pipeline step.
type Outcome int

const (
	Pass Outcome = iota
	WarnContinue
	FatalAbort
)

func (o Outcome) String() string {
	switch o {
	case Pass:
		return "pass"
	case WarnContinue:
		return "warn"
	case FatalAbort:
		return "fatal"
	}
	return "unknown"
}

// StepKind groups steps by what they do to the host.
type StepKind string

const (
	KindCheck   StepKind = "check"
	KindInstall StepKind = "install"
	KindVerify  StepKind = "verify"
	KindEmit    StepKind = "emit"
)

// StepResult is what a step reports back to the pipeline driver.
type StepResult struct {
	Step    string  `pkl:"step"`
	Outcome Outcome `pkl:"outcome"`
	Message string  `pkl:"message"`
	Skipped bool    `pkl:"skipped"`
	Err     error
}

func Passed(msg string) StepResult {
	return StepResult{Outcome: Pass, Message: msg}
}

func Warned(msg string) StepResult {
	return StepResult{Outcome: WarnContinue, Message: msg}
}

func Fatal(msg string, err error) StepResult {
	return StepResult{Outcome: FatalAbort, Message: msg, Err: err}
}

// PlannedStep is the static description of a step, used by `plan`.
type PlannedStep struct {
	Index       int      `yaml:"index"`
	Name        string   `yaml:"name"`
	Kind        StepKind `yaml:"kind"`
	Description string   `yaml:"description"`
}
