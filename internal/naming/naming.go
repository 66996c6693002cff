// Package naming decodes the agent VM naming contract: which pool a node
// belongs to, its ordinal inside the pool, and the name of its network
// interface.
package naming

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/QSFT/Kubernetes-acs-autoscaler/internal/models"
)

// Strategy maps a node name to the resources derived from it.
type Strategy interface {
	PoolOf(name string) (string, error)
	OrdinalOf(name string) (int, error)
	NICNameOf(name string) (string, error)
}

const (
	ACSEngine = "acs-engine"
	VMSuffix  = "vm-suffix"
)

// New returns the strategy registered under kind.
func New(kind string) (Strategy, error) {
	switch kind {
	case ACSEngine, "":
		return acsEngine, nil
	case VMSuffix:
		return vmSuffix, nil
	default:
		return nil, fmt.Errorf("unknown naming strategy %q (must be %s/%s)", kind, ACSEngine, VMSuffix)
	}
}

// Pattern is a Strategy driven by a regular expression with the named groups
// "prefix", "pool" and "ordinal". The NIC name is "<prefix>-nic-<ordinal>".
type Pattern struct {
	re *regexp.Regexp
}

var (
	// k8s-agentpool1-12345678-0 -> pool agentpool1, nic k8s-agentpool1-12345678-nic-0
	acsEngine = NewPattern(`^(?P<prefix>[a-z0-9]+-(?P<pool>[a-z0-9]+)-[a-z0-9]+)-(?P<ordinal>[0-9]+)$`)
	// pool-a-12345-vm-3 -> pool pool-a, nic pool-a-12345-nic-3
	vmSuffix = NewPattern(`^(?P<prefix>(?P<pool>[a-z0-9][a-z0-9-]*)-[0-9]+)-vm-(?P<ordinal>[0-9]+)$`)
)

// NewPattern compiles expr; it panics if expr is invalid or misses a group.
func NewPattern(expr string) *Pattern {
	re := regexp.MustCompile(expr)
	for _, group := range []string{"prefix", "pool", "ordinal"} {
		if re.SubexpIndex(group) < 0 {
			panic(fmt.Sprintf("naming pattern %q has no %q group", expr, group))
		}
	}
	return &Pattern{re: re}
}

func (p *Pattern) match(name string) ([]string, error) {
	m := p.re.FindStringSubmatch(name)
	if m == nil {
		return nil, fmt.Errorf("%w: %q", models.ErrMalformedNodeName, name)
	}
	return m, nil
}

func (p *Pattern) PoolOf(name string) (string, error) {
	m, err := p.match(name)
	if err != nil {
		return "", err
	}
	return m[p.re.SubexpIndex("pool")], nil
}

func (p *Pattern) OrdinalOf(name string) (int, error) {
	m, err := p.match(name)
	if err != nil {
		return 0, err
	}
	ordinal, err := strconv.Atoi(m[p.re.SubexpIndex("ordinal")])
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %v", models.ErrMalformedNodeName, name, err)
	}
	return ordinal, nil
}

func (p *Pattern) NICNameOf(name string) (string, error) {
	m, err := p.match(name)
	if err != nil {
		return "", err
	}
	return m[p.re.SubexpIndex("prefix")] + "-nic-" + m[p.re.SubexpIndex("ordinal")], nil
}
