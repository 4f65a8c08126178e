package apply

import (
	"fmt"

	"github.com/danieljhkim/hostconf/internal/instr"
)

// Status is the result of one instruction.
type Status uint8

const (
	Succeeded Status = iota
	Failed
	Skipped
)

func (s Status) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return fmt.Sprintf("status(%d)", s)
}

// Outcome records what happened to one instruction.
type Outcome struct {
	// Subject is the path or package identity
	Subject string

	// Instruction describes the operation
	Instruction string

	Status Status

	// Err is set when Status is Failed
	Err error
}

// Report collects outcomes in the order they happened.
type Report struct {
	Outcomes []Outcome
}

// Summary counts outcomes by status.
type Summary struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

func (s Summary) Total() int {
	return s.Succeeded + s.Failed + s.Skipped
}

// Add combines two summaries.
func (s Summary) Add(other Summary) Summary {
	return Summary{
		Succeeded: s.Succeeded + other.Succeeded,
		Failed:    s.Failed + other.Failed,
		Skipped:   s.Skipped + other.Skipped,
	}
}

func NewReport() *Report {
	return &Report{}
}

func (r *Report) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
}

func (r *Report) fs(ins instr.FsInstruction, status Status, err error) {
	r.add(Outcome{Subject: ins.Path, Instruction: ins.Op.String(), Status: status, Err: err})
}

func (r *Report) pkg(e instr.PkgEntry, status Status, err error) {
	r.add(Outcome{Subject: e.Ident.String(), Instruction: e.Instruction.Op.String(), Status: status, Err: err})
}

// Merge appends the outcomes of other. A nil other is ignored.
func (r *Report) Merge(other *Report) {
	if other == nil {
		return
	}
	r.Outcomes = append(r.Outcomes, other.Outcomes...)
}

// Summary counts the outcomes.
func (r *Report) Summary() Summary {
	var s Summary
	if r == nil {
		return s
	}
	for _, o := range r.Outcomes {
		switch o.Status {
		case Succeeded:
			s.Succeeded++
		case Failed:
			s.Failed++
		case Skipped:
			s.Skipped++
		}
	}
	return s
}

// Failures returns the failed outcomes.
func (r *Report) Failures() []Outcome {
	var out []Outcome
	for _, o := range r.Outcomes {
		if o.Status == Failed {
			out = append(out, o)
		}
	}
	return out
}
