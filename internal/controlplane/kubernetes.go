package controlplane

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	batchv1 "k8s.io/api/batch/v1"
	corev1 "k8s.io/api/core/v1"
	apierrors "k8s.io/apimachinery/pkg/api/errors"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/config"
	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

const collaborator = "control plane"

// Labels, annotations and taints written by the Kubernetes adapter.
const (
	IsolationTaintKey  = "cyberguardian.io/isolated"
	DisabledAnnotation = "cyberguardian.io/disabled"
	ManagedByLabel     = "app.kubernetes.io/managed-by"
	ManagedByValue     = "cyberguardian"
	patchDeadline      = int64(600)
)

// Kubernetes maps control-plane operations onto cluster objects: instances
// are Nodes and accounts are ServiceAccounts.
type Kubernetes struct {
	client       kubernetes.Interface
	namespace    string
	patchImage   string
	patchCommand string
	logger       zerolog.Logger
}

// NewKubernetes wraps an existing clientset.
func NewKubernetes(client kubernetes.Interface, cfg config.ControlPlaneConfig, log zerolog.Logger) *Kubernetes {
	return &Kubernetes{
		client:       client,
		namespace:    cfg.Namespace,
		patchImage:   cfg.PatchImage,
		patchCommand: cfg.PatchCommand,
		logger:       log,
	}
}

// NewClientset builds a clientset from the configured kubeconfig, the
// in-cluster service account, or the default loading rules, in that order.
func NewClientset(cfg config.ControlPlaneConfig) (kubernetes.Interface, error) {
	restCfg, err := loadRestConfig(cfg)
	if err != nil {
		return nil, err
	}

	cs, err := kubernetes.NewForConfig(restCfg)
	if err != nil {
		return nil, fmt.Errorf("create kube client: %w", err)
	}
	return cs, nil
}

func loadRestConfig(cfg config.ControlPlaneConfig) (*rest.Config, error) {
	if cfg.InCluster {
		restCfg, err := rest.InClusterConfig()
		if err != nil {
			return nil, fmt.Errorf("load kube config: in-cluster: %w", err)
		}
		return restCfg, nil
	}

	if path := strings.TrimSpace(cfg.Kubeconfig); path != "" {
		restCfg, err := clientcmd.BuildConfigFromFlags("", path)
		if err != nil {
			return nil, fmt.Errorf("load kube config: kubeconfig (path=%q): %w", path, err)
		}
		return restCfg, nil
	}

	if restCfg, err := rest.InClusterConfig(); err == nil {
		return restCfg, nil
	}

	rules := clientcmd.NewDefaultClientConfigLoadingRules()
	restCfg, err := clientcmd.NewNonInteractiveDeferredLoadingClientConfig(rules, &clientcmd.ConfigOverrides{}).ClientConfig()
	if err != nil {
		return nil, fmt.Errorf("load kube config: default rules: %w", err)
	}
	return restCfg, nil
}

func wrapErr(op, kind, id string, err error) error {
	if apierrors.IsNotFound(err) {
		return &models.NotFoundError{Kind: kind, ID: id}
	}
	return &models.ExternalCallError{Collaborator: collaborator, Op: op, Err: err}
}

func newOperation(kind, target, zone string) Operation {
	return Operation{
		Name:   "operation-" + uuid.NewString(),
		Kind:   kind,
		Target: target,
		Zone:   zone,
	}
}

func nodeZone(node *corev1.Node) string {
	if z := node.Labels[corev1.LabelTopologyZone]; z != "" {
		return z
	}
	return node.Labels[corev1.LabelFailureDomainBetaZone]
}

// getNode fetches an instance. A node labelled with a different zone than
// requested is treated as missing.
func (k *Kubernetes) getNode(ctx context.Context, op, instance, zone string) (*corev1.Node, error) {
	node, err := k.client.CoreV1().Nodes().Get(ctx, instance, metav1.GetOptions{})
	if err != nil {
		return nil, wrapErr(op, "instance", instance, err)
	}
	if actual := nodeZone(node); zone != "" && actual != "" && actual != zone {
		return nil, &models.NotFoundError{Kind: "instance", ID: zone + "/" + instance}
	}
	return node, nil
}

func (k *Kubernetes) StopInstance(ctx context.Context, instance, zone string) (Operation, error) {
	node, err := k.getNode(ctx, OpStopInstance, instance, zone)
	if err != nil {
		return Operation{}, err
	}

	node.Spec.Unschedulable = true
	if !hasTaint(node.Spec.Taints, IsolationTaintKey) {
		node.Spec.Taints = append(node.Spec.Taints, corev1.Taint{
			Key:    IsolationTaintKey,
			Value:  "true",
			Effect: corev1.TaintEffectNoExecute,
		})
	}

	if _, err := k.client.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{}); err != nil {
		return Operation{}, wrapErr(OpStopInstance, "instance", instance, err)
	}

	k.logger.Info().Str("instance", instance).Str("zone", zone).Msg("instance cordoned and tainted")
	return newOperation(OpStopInstance, instance, zone), nil
}

func hasTaint(taints []corev1.Taint, key string) bool {
	for _, t := range taints {
		if t.Key == key {
			return true
		}
	}
	return false
}

// accountRef resolves "namespace/name", "user@domain" or a bare name to a
// ServiceAccount reference.
func (k *Kubernetes) accountRef(account string) (namespace, name string) {
	account = strings.TrimSpace(account)
	if ns, n, ok := strings.Cut(account, "/"); ok {
		return ns, strings.ToLower(n)
	}
	if local, _, ok := strings.Cut(account, "@"); ok {
		return k.namespace, strings.ToLower(local)
	}
	return k.namespace, strings.ToLower(account)
}

func (k *Kubernetes) DisableAccount(ctx context.Context, account string) (Operation, error) {
	namespace, name := k.accountRef(account)

	sa, err := k.client.CoreV1().ServiceAccounts(namespace).Get(ctx, name, metav1.GetOptions{})
	if err != nil {
		return Operation{}, wrapErr(OpDisableAccount, "account", account, err)
	}

	automount := false
	sa.AutomountServiceAccountToken = &automount
	if sa.Annotations == nil {
		sa.Annotations = map[string]string{}
	}
	sa.Annotations[DisabledAnnotation] = "true"

	if _, err := k.client.CoreV1().ServiceAccounts(namespace).Update(ctx, sa, metav1.UpdateOptions{}); err != nil {
		return Operation{}, wrapErr(OpDisableAccount, "account", account, err)
	}

	k.logger.Info().Str("namespace", namespace).Str("account", name).Msg("service account disabled")
	return newOperation(OpDisableAccount, namespace+"/"+name, ""), nil
}

func (k *Kubernetes) ApplyPatchJob(ctx context.Context, instance, jobName string) (Operation, error) {
	if _, err := k.getNode(ctx, OpApplyPatchJob, instance, ""); err != nil {
		return Operation{}, err
	}

	job := k.patchJob(instance, jobName)
	created, err := k.client.BatchV1().Jobs(k.namespace).Create(ctx, job, metav1.CreateOptions{})
	if err != nil {
		return Operation{}, wrapErr(OpApplyPatchJob, "instance", instance, err)
	}

	k.logger.Info().Str("instance", instance).Str("job", created.Name).Msg("patch job created")
	op := newOperation(OpApplyPatchJob, instance, "")
	op.Name = created.Name
	return op, nil
}

func (k *Kubernetes) patchJob(instance, jobName string) *batchv1.Job {
	deadline := patchDeadline
	backoff := int32(0)
	if jobName == "" {
		jobName = "patch-" + instance + "-" + uuid.NewString()[:8]
	}

	return &batchv1.Job{
		ObjectMeta: metav1.ObjectMeta{
			Name:      jobName,
			Namespace: k.namespace,
			Labels: map[string]string{
				ManagedByLabel:              ManagedByValue,
				"cyberguardian.io/instance": instance,
			},
		},
		Spec: batchv1.JobSpec{
			ActiveDeadlineSeconds: &deadline,
			BackoffLimit:          &backoff,
			Template: corev1.PodTemplateSpec{
				ObjectMeta: metav1.ObjectMeta{
					Labels: map[string]string{ManagedByLabel: ManagedByValue},
				},
				Spec: corev1.PodSpec{
					NodeName:      instance,
					RestartPolicy: corev1.RestartPolicyNever,
					Tolerations: []corev1.Toleration{{
						Key:      IsolationTaintKey,
						Operator: corev1.TolerationOpExists,
						Effect:   corev1.TaintEffectNoExecute,
					}},
					Containers: []corev1.Container{{
						Name:    "patch",
						Image:   k.patchImage,
						Command: []string{"/bin/sh", "-c", k.patchCommand},
					}},
				},
			},
		},
	}
}

func (k *Kubernetes) SetLabels(ctx context.Context, instance, zone string, labels map[string]string) (Operation, error) {
	node, err := k.getNode(ctx, OpSetLabels, instance, zone)
	if err != nil {
		return Operation{}, err
	}

	if node.Labels == nil {
		node.Labels = map[string]string{}
	}
	for key, value := range labels {
		node.Labels[key] = value
	}

	if _, err := k.client.CoreV1().Nodes().Update(ctx, node, metav1.UpdateOptions{}); err != nil {
		return Operation{}, wrapErr(OpSetLabels, "instance", instance, err)
	}
	return newOperation(OpSetLabels, instance, zone), nil
}

// ListAssets returns Nodes, Namespaces and the ServiceAccounts of the
// configured namespace.
func (k *Kubernetes) ListAssets(ctx context.Context) ([]models.Asset, error) {
	nodes, err := k.client.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapErr(OpListAssets, "nodes", "", err)
	}
	namespaces, err := k.client.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapErr(OpListAssets, "namespaces", "", err)
	}
	accounts, err := k.client.CoreV1().ServiceAccounts(k.namespace).List(ctx, metav1.ListOptions{})
	if err != nil {
		return nil, wrapErr(OpListAssets, "serviceaccounts", k.namespace, err)
	}

	assets := make([]models.Asset, 0, len(nodes.Items)+len(namespaces.Items)+len(accounts.Items))
	for i := range nodes.Items {
		n := &nodes.Items[i]
		assets = append(assets, models.Asset{
			Name:         n.Name,
			AssetType:    "Node",
			ResourceName: "nodes/" + n.Name,
			Location:     nodeZone(n),
		})
	}
	for _, ns := range namespaces.Items {
		assets = append(assets, models.Asset{
			Name:         ns.Name,
			AssetType:    "Namespace",
			ResourceName: "namespaces/" + ns.Name,
		})
	}
	for _, sa := range accounts.Items {
		assets = append(assets, models.Asset{
			Name:         sa.Name,
			AssetType:    "ServiceAccount",
			ResourceName: "namespaces/" + sa.Namespace + "/serviceaccounts/" + sa.Name,
			Location:     sa.Namespace,
		})
	}
	return assets, nil
}
