// Package controlplanetest provides a scriptable control plane for tests.
package controlplanetest

import (
	"context"
	"sync"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/controlplane"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

// Call is one recorded invocation.
type Call struct {
	Op     string
	Target string
	Zone   string
	Labels map[string]string
}

// Fake succeeds on every call unless Errors holds an error for the
// operation kind. Calls are recorded in order.
type Fake struct {
	mu sync.Mutex

	Errors map[string]error
	Assets []models.Asset
	Calls  []Call
}

var _ controlplane.ControlPlane = (*Fake)(nil)

// New returns a Fake with no injected failures.
func New() *Fake {
	return &Fake{Errors: map[string]error{}}
}

// FailOn makes every call of kind op return err.
func (f *Fake) FailOn(op string, err error) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Errors == nil {
		f.Errors = map[string]error{}
	}
	f.Errors[op] = err
	return f
}

func (f *Fake) record(call Call) (controlplane.Operation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, call)
	if err := f.Errors[call.Op]; err != nil {
		return controlplane.Operation{}, err
	}
	return controlplane.Operation{
		Name:   call.Op + "-" + call.Target,
		Kind:   call.Op,
		Target: call.Target,
		Zone:   call.Zone,
	}, nil
}

func (f *Fake) StopInstance(_ context.Context, instance, zone string) (controlplane.Operation, error) {
	return f.record(Call{Op: controlplane.OpStopInstance, Target: instance, Zone: zone})
}

func (f *Fake) DisableAccount(_ context.Context, account string) (controlplane.Operation, error) {
	return f.record(Call{Op: controlplane.OpDisableAccount, Target: account})
}

func (f *Fake) ApplyPatchJob(_ context.Context, instance, jobName string) (controlplane.Operation, error) {
	op, err := f.record(Call{Op: controlplane.OpApplyPatchJob, Target: instance})
	if err == nil && jobName != "" {
		op.Name = jobName
	}
	return op, err
}

func (f *Fake) SetLabels(_ context.Context, instance, zone string, labels map[string]string) (controlplane.Operation, error) {
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	return f.record(Call{Op: controlplane.OpSetLabels, Target: instance, Zone: zone, Labels: copied})
}

func (f *Fake) ListAssets(context.Context) ([]models.Asset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.Errors[controlplane.OpListAssets]; err != nil {
		return nil, err
	}
	out := make([]models.Asset, len(f.Assets))
	copy(out, f.Assets)
	return out, nil
}

// CallsOf returns the recorded calls of one kind.
func (f *Fake) CallsOf(op string) []Call {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []Call
	for _, c := range f.Calls {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}
