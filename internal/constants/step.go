package constants

import "fmt"

// Step identifies a voting step of the agreement protocol. Each step has its own
// committee size and threshold.
type Step string

const (
	// StepSoft is the soft vote step (vote log code 1).
	StepSoft Step = "soft"

	// StepCert is the certification vote step (vote log code 2).
	StepCert Step = "cert"

	// StepNext is the next vote step. It never appears in vote logs.
	StepNext Step = "next"
)

// AllSteps lists the steps in reporting order.
var AllSteps = []Step{StepSoft, StepCert, StepNext}

// Valid returns true if the step is a recognized value.
func (s Step) Valid() bool {
	switch s {
	case StepSoft, StepCert, StepNext:
		return true
	}
	return false
}

// String returns the string representation of the step.
func (s Step) String() string {
	return string(s)
}

// Title returns the capitalized step name used in report headings.
func (s Step) Title() string {
	switch s {
	case StepSoft:
		return "Soft"
	case StepCert:
		return "Cert"
	case StepNext:
		return "Next"
	}
	return string(s)
}

// Code returns the vote log step code. Steps without a code return 0.
func (s Step) Code() int {
	switch s {
	case StepSoft:
		return SoftStepCode
	case StepCert:
		return CertStepCode
	}
	return 0
}

// StepFromCode maps a vote log step code to a Step. ok is false for codes that
// are not analyzed.
func StepFromCode(code int) (Step, bool) {
	switch code {
	case SoftStepCode:
		return StepSoft, true
	case CertStepCode:
		return StepCert, true
	}
	return "", false
}

// ParseStep parses a step name.
func ParseStep(s string) (Step, error) {
	step := Step(s)
	if !step.Valid() {
		return "", fmt.Errorf("invalid step %q (valid: soft, cert, next)", s)
	}
	return step, nil
}
