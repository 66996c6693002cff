// Package template rewrites ARM deployment templates and parameters for
// redeploy-based scaling.
package template

import (
	"fmt"
	"strings"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

const (
	nsgType  = "Microsoft.Network/networkSecurityGroups"
	vnetType = "Microsoft.Network/virtualNetworks"
)

// MutateForScaleUp returns a copy of tpl without the network security group
// resource and without the virtual network's dependency on it, so that NICs
// created by the deployment are not serialized behind the security group.
// The input is never modified.
func MutateForScaleUp(tpl map[string]any) (map[string]any, error) {
	out, ok := deepCopy(tpl).(map[string]any)
	if !ok || out == nil {
		return nil, fmt.Errorf("%w: template is not an object", models.ErrTemplateShape)
	}
	resources, ok := out["resources"].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: template has no resources array", models.ErrTemplateShape)
	}

	nsgIndex := -1
	for i, r := range resources {
		if resourceType(r) == nsgType {
			nsgIndex = i
			break
		}
	}
	if nsgIndex < 0 {
		return nil, fmt.Errorf("%w: no %s resource", models.ErrTemplateShape, nsgType)
	}

	for _, r := range resources {
		if resourceType(r) != vnetType {
			continue
		}
		res := r.(map[string]any)
		deps, ok := res["dependsOn"].([]any)
		if !ok {
			continue
		}
		for j, dep := range deps {
			if s, ok := dep.(string); ok && dependsOnSecurityGroup(s) {
				res["dependsOn"] = append(deps[:j:j], deps[j+1:]...)
				break
			}
		}
	}

	out["resources"] = append(resources[:nsgIndex:nsgIndex], resources[nsgIndex+1:]...)
	return out, nil
}

// dependsOnSecurityGroup matches both the concat('.../networkSecurityGroups/', ...)
// and the resourceId('.../networkSecurityGroups', ...) forms of a dependency.
func dependsOnSecurityGroup(dep string) bool {
	return strings.Contains(dep, nsgType+"/") || strings.Contains(dep, nsgType+"'")
}

func resourceType(r any) string {
	res, ok := r.(map[string]any)
	if !ok {
		return ""
	}
	t, _ := res["type"].(string)
	return t
}

// deepCopy copies the JSON-shaped value v.
func deepCopy(v any) any {
	switch val := v.(type) {
	case map[string]any:
		if val == nil {
			return val
		}
		out := make(map[string]any, len(val))
		for k, e := range val {
			out[k] = deepCopy(e)
		}
		return out
	case []any:
		if val == nil {
			return val
		}
		out := make([]any, len(val))
		for i, e := range val {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return val
	}
}
