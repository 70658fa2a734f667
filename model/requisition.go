// Copyright (c) 2020-present Mattermost, Inc. All Rights Reserved.
// See LICENSE.txt for license information.
//

package model

import (
	"encoding/json"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
)

// Action is the operation a Requisition asks for.
type Action string

const (
	// ActionCreate provisions a custom role for an account.
	ActionCreate Action = "create"
	// ActionDelete deprovisions a previously created custom role.
	ActionDelete Action = "delete"
)

// Transaction kinds known to the built-in step catalog.
const (
	KindCustomRole       = "custom-role"
	KindCustomRoleDelete = "custom-role-delete"
)

var (
	validAccountID = regexp.MustCompile(`^[0-9]{12}$`)
	validRoleName  = regexp.MustCompile(`^[\w+=,.@-]{1,64}$`)
	validPolicyARN = regexp.MustCompile(`^arn:aws[a-z-]*:iam::(aws|[0-9]{12}):policy/[\w+=,.@/-]+$`)
)

// Requisition is the caller-supplied description of what to provision
// or deprovision.
type Requisition struct {
	AccountID  string
	RoleName   string
	Action     Action
	PolicyARNs []string `json:",omitempty"`
	Requester  string   `json:",omitempty"`

	// DryRun simulates every step instead of executing it.
	DryRun bool `json:",omitempty"`
	// ForceFailStep makes the step with this ID report failure without
	// doing any work. It exists to exercise the rollback path.
	ForceFailStep int `json:",omitempty"`
}

// Kind returns the transaction kind that fulfils the Requisition.
func (r *Requisition) Kind() string {
	switch r.Action {
	case ActionCreate:
		return KindCustomRole
	case ActionDelete:
		return KindCustomRoleDelete
	}
	return ""
}

// Validate validates the shape of a Requisition.
func (r *Requisition) Validate() error {
	if !validAccountID.MatchString(r.AccountID) {
		return errors.Errorf("account ID %q must be a 12 digit number", r.AccountID)
	}
	if !validRoleName.MatchString(r.RoleName) {
		return errors.Errorf("role name %q is not a valid IAM role name", r.RoleName)
	}
	if r.Action != ActionCreate && r.Action != ActionDelete {
		return errors.Errorf("action must be one of %q or %q", ActionCreate, ActionDelete)
	}
	for _, arn := range r.PolicyARNs {
		if !validPolicyARN.MatchString(arn) {
			return errors.Errorf("%q is not a valid policy ARN", arn)
		}
	}
	if r.ForceFailStep < 0 {
		return errors.New("force fail step must not be negative")
	}

	return nil
}

// GroupName returns the directory group that mirrors the role.
func (r *Requisition) GroupName() string {
	return strings.ToLower("aws-" + r.AccountID + "-" + r.RoleName)
}

// Clone returns a deep copy of the Requisition.
func (r Requisition) Clone() Requisition {
	c := r
	if r.PolicyARNs != nil {
		c.PolicyARNs = make([]string, len(r.PolicyARNs))
		copy(c.PolicyARNs, r.PolicyARNs)
	}
	return c
}

// NewRequisitionFromReader decodes a Requisition from a
// Reader.
func NewRequisitionFromReader(reader io.Reader) (*Requisition, error) {
	var requisition Requisition
	err := json.NewDecoder(reader).Decode(&requisition)
	if err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "failed to decode requisition")
	}

	return &requisition, nil
}
