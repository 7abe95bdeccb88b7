// Package remediation isolates, patches and restores affected resources.
// Each operation calls exactly one collaborator and reports the outcome as
// a RemediationAction.
package remediation

import (
	"context"
	"fmt"
	"path"
	"slices"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/storage"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/services/containment"
)

// Service performs remediation actions.
type Service struct {
	cp           controlplane.ControlPlane
	store        storage.ObjectStore
	defaultZone  string
	backupBucket string
	now          func() time.Time
	logger       zerolog.Logger
}

// NewService restores files from backupBucket, normally the incident bucket.
func NewService(cp controlplane.ControlPlane, store storage.ObjectStore, defaultZone, backupBucket string, log zerolog.Logger) *Service {
	return &Service{
		cp:           cp,
		store:        store,
		defaultZone:  defaultZone,
		backupBucket: backupBucket,
		now:          time.Now,
		logger:       log,
	}
}

// IsolateVM stops the instance.
func (s *Service) IsolateVM(ctx context.Context, instance, zone string) (models.RemediationAction, error) {
	if err := controlplane.ValidateInstance("instance_name", instance); err != nil {
		return models.RemediationAction{}, err
	}
	if zone == "" {
		zone = s.defaultZone
	}
	return s.run(models.RemediationIsolateVM, instance, func() (string, error) {
		if _, err := s.cp.StopInstance(ctx, instance, zone); err != nil {
			return "", err
		}
		return "VM stopped successfully.", nil
	})
}

// PatchVM launches a patch job on the instance.
func (s *Service) PatchVM(ctx context.Context, instance, jobName string) (models.RemediationAction, error) {
	if err := controlplane.ValidateInstance("instance_id", instance); err != nil {
		return models.RemediationAction{}, err
	}
	if jobName != "" {
		if err := controlplane.ValidateInstance("patch_job_name", jobName); err != nil {
			return models.RemediationAction{}, err
		}
	}
	return s.run(models.RemediationPatchVM, instance, func() (string, error) {
		op, err := s.cp.ApplyPatchJob(ctx, instance, jobName)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Patch job %s triggered.", op.Name), nil
	})
}

// RecoverFile restores filePath from the backup bucket.
func (s *Service) RecoverFile(ctx context.Context, filePath string) (models.RemediationAction, error) {
	clean, err := cleanPath(filePath)
	if err != nil {
		return models.RemediationAction{}, err
	}
	return s.run(models.RemediationRecoverFile, filePath, func() (string, error) {
		uri, err := s.store.Restore(ctx, s.backupBucket, clean)
		if err != nil {
			return "", err
		}
		s.logger.Debug().Str("restored", uri).Msg("File restored")
		return "File recovered from " + storage.URI(s.backupBucket, storage.BackupPrefix+clean), nil
	})
}

func (s *Service) run(action, resource string, call func() (string, error)) (models.RemediationAction, error) {
	rec, err := models.NewRemediationAction(action, resource, s.now())
	if err != nil {
		return rec, err
	}

	msg, callErr := call()
	if callErr != nil {
		s.logger.Error().Err(callErr).Str("action", action).Str("resource", resource).Msg("Remediation action failed")
		return rec.Transition(models.StatusFailed, containment.FailureMessage(resource, callErr))
	}
	s.logger.Info().Str("action", action).Str("resource", resource).Msg(msg)
	return rec.Transition(models.StatusExecuted, msg)
}

// cleanPath rejects empty and escaping paths and returns a bucket-relative path.
func cleanPath(p string) (string, error) {
	trimmed := strings.TrimSpace(p)
	if trimmed == "" {
		return "", models.NewValidationError("file_path", "is required", p)
	}
	clean := strings.TrimPrefix(path.Clean("/"+trimmed), "/")
	if clean == "" || slices.Contains(strings.Split(trimmed, "/"), "..") {
		return "", models.NewValidationError("file_path", "must be a path inside the backup bucket", p)
	}
	return clean, nil
}
