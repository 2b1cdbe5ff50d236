package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"

	"github.com/final-year-project/doubtfire-api/internal/domain"
	"github.com/final-year-project/doubtfire-api/internal/observability"
	"github.com/final-year-project/doubtfire-api/pkg/util/errorutil"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Gate answers (user, object, action) permission questions.
type Gate struct {
	enforcer *casbin.SyncedEnforcer
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewGate builds a gate from the embedded RBAC model and policy.
func NewGate(metrics *observability.Metrics, logger *zap.Logger) (*Gate, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	enforcer, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadPolicy(enforcer, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Gate{enforcer: enforcer, metrics: metrics, logger: logger}, nil
}

func loadPolicy(enforcer *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := enforcer.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := enforcer.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether user may perform action on obj.
func (g *Gate) Can(user *domain.User, obj Object, action Action) bool {
	if user == nil {
		return false
	}
	role, ok := obj.RoleFor(user)
	if !ok {
		return false
	}
	allowed, err := g.enforcer.Enforce(string(role), string(obj.Kind()), string(action))
	if err != nil {
		g.logger.Error("authorization check failed",
			zap.String("kind", string(obj.Kind())),
			zap.String("action", string(action)),
			zap.Error(err))
		return false
	}
	return allowed
}

// Authorize is Can returning a NotAuthorized error on denial.
func (g *Gate) Authorize(user *domain.User, obj Object, action Action) error {
	if g.Can(user, obj, action) {
		return nil
	}
	g.metrics.RecordAuthzDenied(string(obj.Kind()), string(action))
	return errorutil.NewNotAuthorized(fmt.Sprintf("not authorised to %s", strings.ReplaceAll(string(action), "_", " ")))
}
