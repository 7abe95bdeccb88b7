// Package containment stops instances, disables accounts and labels
// resources through the control plane. Every attempt yields one
// ContainmentAction in a terminal status.
package containment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// PolicyLabel is attached by tag_vm when applied through a policy.
const PolicyLabel = "policy"

// Service performs containment actions.
type Service struct {
	cp          controlplane.ControlPlane
	defaultZone string
	now         func() time.Time
	logger      zerolog.Logger
}

func NewService(cp controlplane.ControlPlane, defaultZone string, log zerolog.Logger) *Service {
	return &Service{cp: cp, defaultZone: defaultZone, now: time.Now, logger: log}
}

// PerformVMIsolation stops the instance in zone, or in the default zone.
func (s *Service) PerformVMIsolation(ctx context.Context, instance, zone string) (models.ContainmentAction, error) {
	if err := controlplane.ValidateInstance("resource_id", instance); err != nil {
		return models.ContainmentAction{}, err
	}
	return s.isolate(ctx, instance, zone, "")
}

// LockUserAccount disables the account.
func (s *Service) LockUserAccount(ctx context.Context, account string) (models.ContainmentAction, error) {
	if err := controlplane.ValidateAccount("account_id", account); err != nil {
		return models.ContainmentAction{}, err
	}
	return s.disable(ctx, account, "")
}

// TagVM merges labels onto the instance for audit.
func (s *Service) TagVM(ctx context.Context, instance string, labels map[string]string) (models.ContainmentAction, error) {
	if err := controlplane.ValidateInstance("resource_id", instance); err != nil {
		return models.ContainmentAction{}, err
	}
	if err := controlplane.ValidateLabels("labels", labels); err != nil {
		return models.ContainmentAction{}, err
	}
	return s.tag(ctx, instance, labels, "")
}

// ApplyPolicy runs every action against every target, resource-major. The
// whole policy is validated before anything executes.
func (s *Service) ApplyPolicy(ctx context.Context, policy models.ContainmentPolicy) ([]models.ContainmentAction, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	for i, res := range policy.TargetResources {
		field := fmt.Sprintf("target_resources[%d]", i)
		for _, action := range policy.Actions {
			var err error
			if action == models.ActionDisableAccount {
				err = controlplane.ValidateAccount(field, res)
			} else {
				err = controlplane.ValidateInstance(field, res)
			}
			if err != nil {
				return nil, err
			}
		}
	}

	justification := policy.Justification
	if justification == "" {
		justification = "containment policy " + policy.ID
	}

	results := make([]models.ContainmentAction, 0, len(policy.TargetResources)*len(policy.Actions))
	for _, res := range policy.TargetResources {
		for _, action := range policy.Actions {
			var (
				rec models.ContainmentAction
				err error
			)
			switch action {
			case models.ActionIsolateVM:
				rec, err = s.isolate(ctx, res, "", justification)
			case models.ActionDisableAccount:
				rec, err = s.disable(ctx, res, justification)
			case models.ActionTagVM:
				rec, err = s.tag(ctx, res, map[string]string{PolicyLabel: policy.ID}, justification)
			}
			if err != nil {
				return results, err
			}
			results = append(results, rec)
		}
	}

	s.logger.Info().Str("policy", policy.ID).Int("actions", len(results)).Msg("Containment policy applied")
	return results, nil
}

func (s *Service) isolate(ctx context.Context, instance, zone, justification string) (models.ContainmentAction, error) {
	if zone == "" {
		zone = s.defaultZone
	}
	return s.run(instance, models.ActionIsolateVM, justification, func() (controlplane.Operation, error) {
		return s.cp.StopInstance(ctx, instance, zone)
	}, fmt.Sprintf("VM %s stopped successfully.", instance))
}

func (s *Service) disable(ctx context.Context, account, justification string) (models.ContainmentAction, error) {
	return s.run(account, models.ActionDisableAccount, justification, func() (controlplane.Operation, error) {
		return s.cp.DisableAccount(ctx, account)
	}, fmt.Sprintf("Account %s disabled successfully.", account))
}

func (s *Service) tag(ctx context.Context, instance string, labels map[string]string, justification string) (models.ContainmentAction, error) {
	return s.run(instance, models.ActionTagVM, justification, func() (controlplane.Operation, error) {
		return s.cp.SetLabels(ctx, instance, s.defaultZone, labels)
	}, "Applied labels: "+formatLabels(labels))
}

// run records a pending action, performs call and settles the action.
// Only record construction errors are returned.
func (s *Service) run(resource, actionType, justification string, call func() (controlplane.Operation, error), success string) (models.ContainmentAction, error) {
	rec, err := models.NewContainmentAction(resource, actionType, justification, s.now())
	if err != nil {
		return rec, err
	}

	op, callErr := call()
	if callErr != nil {
		s.logger.Error().Err(callErr).Str("resource", resource).Str("action", actionType).Msg("Containment action failed")
		return rec.Transition(models.StatusFailed, FailureMessage(resource, callErr))
	}

	s.logger.Info().Str("resource", resource).Str("action", actionType).Str("operation", op.Name).Msg("Containment action executed")
	return rec.Transition(models.StatusExecuted, success)
}

// FailureMessage describes a control plane failure for an action record.
func FailureMessage(resource string, err error) string {
	if errors.Is(err, models.ErrNotFound) {
		return fmt.Sprintf("resource %s not found: %v", resource, err)
	}
	return err.Error()
}

func formatLabels(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+labels[k])
	}
	return strings.Join(parts, ", ")
}
