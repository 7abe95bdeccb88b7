// Package controlplane is the infrastructure control boundary used by
// containment and remediation.
package controlplane

import (
	"context"
	"errors"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// Operation is the handle returned by every mutating call.
type Operation struct {
	Name   string `json:"name"`
	Kind   string `json:"kind"`
	Target string `json:"target"`
	Zone   string `json:"zone,omitempty"`
}

// Operation kinds.
const (
	OpStopInstance   = "stop-instance"
	OpDisableAccount = "disable-account"
	OpApplyPatchJob  = "apply-patch-job"
	OpSetLabels      = "set-labels"
	OpListAssets     = "list-assets"
)

// ControlPlane is implemented by the Kubernetes adapter and by test fakes.
// A missing instance or account is reported as *models.NotFoundError; other
// failures are *models.ExternalCallError.
type ControlPlane interface {
	StopInstance(ctx context.Context, instance, zone string) (Operation, error)
	DisableAccount(ctx context.Context, account string) (Operation, error)
	ApplyPatchJob(ctx context.Context, instance, jobName string) (Operation, error)
	SetLabels(ctx context.Context, instance, zone string, labels map[string]string) (Operation, error)
	ListAssets(ctx context.Context) ([]models.Asset, error)
}

// ErrNotConfigured is returned by Unavailable.
var ErrNotConfigured = errors.New("control plane not configured")

// Unavailable is used when no cluster credentials are available.
type Unavailable struct{}

func (Unavailable) StopInstance(context.Context, string, string) (Operation, error) {
	return Operation{}, ErrNotConfigured
}

func (Unavailable) DisableAccount(context.Context, string) (Operation, error) {
	return Operation{}, ErrNotConfigured
}

func (Unavailable) ApplyPatchJob(context.Context, string, string) (Operation, error) {
	return Operation{}, ErrNotConfigured
}

func (Unavailable) SetLabels(context.Context, string, string, map[string]string) (Operation, error) {
	return Operation{}, ErrNotConfigured
}

func (Unavailable) ListAssets(context.Context) ([]models.Asset, error) {
	return nil, ErrNotConfigured
}
