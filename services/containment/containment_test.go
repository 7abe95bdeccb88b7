package containment

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane/controlplanetest"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/logger"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

func newService(cp controlplane.ControlPlane) *Service {
	return NewService(cp, "us-central1-a", logger.NewTestLogger())
}

func TestPerformVMIsolation(t *testing.T) {
	tests := []struct {
		name       string
		zone       string
		failWith   error
		wantStatus models.ActionStatus
		wantMsg    string
		wantZone   string
	}{
		{name: "executed", zone: "europe-west1-b", wantStatus: models.StatusExecuted, wantMsg: "VM web-frontend-1 stopped successfully.", wantZone: "europe-west1-b"},
		{name: "default zone", wantStatus: models.StatusExecuted, wantMsg: "VM web-frontend-1 stopped successfully.", wantZone: "us-central1-a"},
		{name: "control plane failure", failWith: errors.New("quota exceeded"), wantStatus: models.StatusFailed, wantMsg: "quota exceeded", wantZone: "us-central1-a"},
		{
			name:       "not found",
			failWith:   &models.NotFoundError{Kind: "node", ID: "web-frontend-1"},
			wantStatus: models.StatusFailed,
			wantMsg:    "resource web-frontend-1 not found: node not found: web-frontend-1",
			wantZone:   "us-central1-a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := controlplanetest.New()
			if tt.failWith != nil {
				cp.FailOn(controlplane.OpStopInstance, tt.failWith)
			}
			rec, err := newService(cp).PerformVMIsolation(context.Background(), "web-frontend-1", tt.zone)
			require.NoError(t, err)

			assert.Equal(t, "web-frontend-1", rec.ResourceID)
			assert.Equal(t, models.ActionIsolateVM, rec.ActionType)
			assert.Equal(t, tt.wantStatus, rec.Status)
			assert.Equal(t, tt.wantMsg, rec.Message)

			calls := cp.CallsOf(controlplane.OpStopInstance)
			require.Len(t, calls, 1)
			assert.Equal(t, tt.wantZone, calls[0].Zone)
		})
	}
}

func TestInvalidIdentifiersAreRejected(t *testing.T) {
	cp := controlplanetest.New()
	svc := newService(cp)
	ctx := context.Background()

	var verr *models.ValidationError
	_, err := svc.PerformVMIsolation(ctx, "", "")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.PerformVMIsolation(ctx, "Web Frontend!", "")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.LockUserAccount(ctx, "bad account;")
	assert.ErrorAs(t, err, &verr)
	_, err = svc.TagVM(ctx, "web-frontend-1", map[string]string{"bad key!": "x"})
	assert.ErrorAs(t, err, &verr)
	_, err = svc.TagVM(ctx, "web-frontend-1", nil)
	assert.ErrorAs(t, err, &verr)

	assert.Empty(t, cp.Calls)
}

func TestLockUserAccount(t *testing.T) {
	cp := controlplanetest.New()
	rec, err := newService(cp).LockUserAccount(context.Background(), "jdoe@example.com")
	require.NoError(t, err)
	assert.Equal(t, models.StatusExecuted, rec.Status)
	assert.Equal(t, "Account jdoe@example.com disabled successfully.", rec.Message)
	assert.Len(t, cp.CallsOf(controlplane.OpDisableAccount), 1)
}

func TestTagVM(t *testing.T) {
	cp := controlplanetest.New()
	rec, err := newService(cp).TagVM(context.Background(), "web-frontend-1", map[string]string{"quarantine": "true", "incident": "ir-42"})
	require.NoError(t, err)
	assert.Equal(t, "Applied labels: incident=ir-42, quarantine=true", rec.Message)
	calls := cp.CallsOf(controlplane.OpSetLabels)
	require.Len(t, calls, 1)
	assert.Equal(t, "ir-42", calls[0].Labels["incident"])
}

func TestApplyPolicy(t *testing.T) {
	policy := models.ContainmentPolicy{
		ID:              "pol-7",
		Name:            "Quarantine frontends",
		TargetResources: []string{"web-frontend-1", "web-frontend-2"},
		Actions:         []string{models.ActionIsolateVM, models.ActionTagVM, models.ActionDisableAccount},
	}

	cp := controlplanetest.New()
	cp.FailOn(controlplane.OpDisableAccount, errors.New("iam unavailable"))
	got, err := newService(cp).ApplyPolicy(context.Background(), policy)
	require.NoError(t, err)

	require.Len(t, got, len(policy.TargetResources)*len(policy.Actions))
	for i, rec := range got {
		assert.Equal(t, policy.TargetResources[i/len(policy.Actions)], rec.ResourceID)
		assert.Equal(t, policy.Actions[i%len(policy.Actions)], rec.ActionType)
		assert.Equal(t, "containment policy pol-7", rec.Justification)
		assert.True(t, rec.Status.Terminal())
	}
	assert.Equal(t, models.StatusFailed, got[2].Status)
	assert.Equal(t, "iam unavailable", got[2].Message)

	tags := cp.CallsOf(controlplane.OpSetLabels)
	require.Len(t, tags, 2)
	assert.Equal(t, map[string]string{"policy": "pol-7"}, tags[0].Labels)
}

func TestApplyPolicyValidatesFirst(t *testing.T) {
	tests := []struct {
		name   string
		policy models.ContainmentPolicy
	}{
		{name: "unknown action", policy: models.ContainmentPolicy{ID: "p", Name: "n", TargetResources: []string{"vm-1"}, Actions: []string{"delete_vm"}}},
		{name: "no targets", policy: models.ContainmentPolicy{ID: "p", Name: "n", Actions: []string{models.ActionIsolateVM}}},
		{name: "bad target", policy: models.ContainmentPolicy{ID: "p", Name: "n", TargetResources: []string{"vm-1", "VM 2"}, Actions: []string{models.ActionIsolateVM}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cp := controlplanetest.New()
			_, err := newService(cp).ApplyPolicy(context.Background(), tt.policy)
			var verr *models.ValidationError
			assert.ErrorAs(t, err, &verr)
			assert.Empty(t, cp.Calls)
		})
	}
}
