package models

import (
	"fmt"
	"time"
)

// ActionStatus is the lifecycle state of a containment or remediation action.
type ActionStatus string

const (
	StatusPending  ActionStatus = "pending"
	StatusExecuted ActionStatus = "executed"
	StatusFailed   ActionStatus = "failed"
)

// Terminal reports whether no further transition is allowed.
func (s ActionStatus) Terminal() bool {
	return s == StatusExecuted || s == StatusFailed
}

func checkTransition(from, to ActionStatus) error {
	if from.Terminal() {
		return NewValidationError("status", fmt.Sprintf("cannot leave terminal status %q", from), to)
	}
	if !to.Terminal() {
		return NewValidationError("status", "transition target must be executed or failed", to)
	}
	return nil
}

// Containment action types.
const (
	ActionIsolateVM      = "isolate_vm"
	ActionDisableAccount = "disable_account"
	ActionTagVM          = "tag_vm"
)

// ContainmentAction records one containment step against one resource.
type ContainmentAction struct {
	ResourceID    string       `json:"resource_id" validate:"required"`
	ActionType    string       `json:"action_type" validate:"required,oneof=isolate_vm disable_account tag_vm"`
	Status        ActionStatus `json:"status" validate:"required,oneof=pending executed failed"`
	Justification string       `json:"justification,omitempty"`
	Message       string       `json:"message,omitempty"`
	Timestamp     time.Time    `json:"timestamp" validate:"required"`
}

// NewContainmentAction returns a pending action.
func NewContainmentAction(resourceID, actionType, justification string, ts time.Time) (ContainmentAction, error) {
	a := ContainmentAction{
		ResourceID:    resourceID,
		ActionType:    actionType,
		Status:        StatusPending,
		Justification: justification,
		Timestamp:     ts.UTC(),
	}
	return a, a.Validate()
}

func (a ContainmentAction) Validate() error { return validateStruct(a) }

// Transition returns a copy of the action in its terminal status.
func (a ContainmentAction) Transition(status ActionStatus, message string) (ContainmentAction, error) {
	if err := checkTransition(a.Status, status); err != nil {
		return a, err
	}
	a.Status = status
	a.Message = message
	return a, nil
}

// ContainmentPolicy declares actions to apply across a set of resources.
type ContainmentPolicy struct {
	ID              string   `json:"id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	Description     string   `json:"description,omitempty"`
	TargetResources []string `json:"target_resources" validate:"required,min=1,dive,required"`
	Actions         []string `json:"actions" validate:"required,min=1,dive,oneof=isolate_vm disable_account tag_vm"`
	Justification   string   `json:"justification,omitempty"`
}

func (p ContainmentPolicy) Validate() error { return validateStruct(p) }

// Remediation action types.
const (
	RemediationIsolateVM   = "isolate_vm"
	RemediationPatchVM     = "patch_vm"
	RemediationRecoverFile = "recover_file"
)

// RemediationAction records one remediation step.
type RemediationAction struct {
	Action    string       `json:"action" validate:"required,oneof=isolate_vm patch_vm recover_file"`
	Resource  string       `json:"resource" validate:"required"`
	Status    ActionStatus `json:"status" validate:"required,oneof=pending executed failed"`
	Message   string       `json:"message,omitempty"`
	Timestamp time.Time    `json:"timestamp" validate:"required"`
}

// NewRemediationAction returns a pending action.
func NewRemediationAction(action, resource string, ts time.Time) (RemediationAction, error) {
	a := RemediationAction{
		Action:    action,
		Resource:  resource,
		Status:    StatusPending,
		Timestamp: ts.UTC(),
	}
	return a, a.Validate()
}

func (a RemediationAction) Validate() error { return validateStruct(a) }

// Transition returns a copy of the action in its terminal status.
func (a RemediationAction) Transition(status ActionStatus, message string) (RemediationAction, error) {
	if err := checkTransition(a.Status, status); err != nil {
		return a, err
	}
	a.Status = status
	a.Message = message
	return a, nil
}
