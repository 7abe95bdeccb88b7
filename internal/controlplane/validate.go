package controlplane

import (
	"regexp"
	"strings"

	"k8s.io/apimachinery/pkg/util/validation"

	"github.com/Fangmbeng/CyberGuard-AI-Agent/internal/models"
)

var accountPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._@+-]*(/[A-Za-z0-9][A-Za-z0-9._-]*)?$`)

// ValidateInstance checks that name can address a node.
func ValidateInstance(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return models.NewValidationError(field, "is required", name)
	}
	if errs := validation.IsDNS1123Subdomain(name); len(errs) > 0 {
		return models.NewValidationError(field, strings.Join(errs, "; "), name)
	}
	return nil
}

// ValidateAccount accepts namespace/name, an email address or a bare name.
func ValidateAccount(field, account string) error {
	if strings.TrimSpace(account) == "" {
		return models.NewValidationError(field, "is required", account)
	}
	if len(account) > 320 || !accountPattern.MatchString(account) {
		return models.NewValidationError(field, "must be namespace/name, an email address or a name", account)
	}
	return nil
}

// ValidateLabels checks keys and values against the label syntax.
func ValidateLabels(field string, labels map[string]string) error {
	if len(labels) == 0 {
		return models.NewValidationError(field, "at least one label is required", labels)
	}
	for k, v := range labels {
		if errs := validation.IsQualifiedName(k); len(errs) > 0 {
			return models.NewValidationError(field+"."+k, strings.Join(errs, "; "), k)
		}
		if errs := validation.IsValidLabelValue(v); len(errs) > 0 {
			return models.NewValidationError(field+"."+k, strings.Join(errs, "; "), v)
		}
	}
	return nil
}
