package model

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"
)

// StepMode selects which of a step's entry points the runner invokes.
type StepMode string

const (
	StepModeExecute  StepMode = "execute"
	StepModeSimulate StepMode = "simulate"
	StepModeFail     StepMode = "fail"
)

// StepDefinition describes one step of a transaction kind.
type StepDefinition struct {
	StepID              int               `yaml:"stepId"`
	Type                string            `yaml:"type"`
	Description         string            `yaml:"description"`
	AnticipatedDuration int64             `yaml:"anticipatedDurationMs"`
	ImplementationKey   string            `yaml:"implementationKey"`
	Mode                StepMode          `yaml:"mode,omitempty" json:",omitempty"`
	Config              map[string]string `yaml:"config,omitempty" json:",omitempty"`
}

// Kind is a named, ordered list of step definitions.
type Kind struct {
	Name  string           `yaml:"name"`
	Steps []StepDefinition `yaml:"steps"`
}

// NewStepRecord builds the Pending StepRecord that tracks the
// definition inside a Transaction.
func (d *StepDefinition) NewStepRecord() *StepRecord {
	return &StepRecord{
		StepID:              d.StepID,
		Type:                d.Type,
		Description:         d.Description,
		ImplementationKey:   d.ImplementationKey,
		AnticipatedDuration: d.AnticipatedDuration,
		Status:              StepStatusPending,
		Result:              ResultUnset,
	}
}

// NewKindListFromReader creates a list of Kinds from a Reader
func NewKindListFromReader(reader io.Reader) ([]*Kind, error) {
	var kinds []*Kind
	err := json.NewDecoder(reader).Decode(&kinds)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode kind list")
	}
	return kinds, nil
}
