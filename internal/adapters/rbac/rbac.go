package rbac

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	gormadapter "github.com/casbin/gorm-adapter/v3"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/ports"
)

//go:embed model.conf
var modelConf string

// roleUser is the base role every authenticated platform role inherits.
const roleUser = "USER"

// basePolicy is the access matrix of the audit log.
var basePolicy = [][]string{
	{roleUser, domain.ObjActionLogs, domain.ActReadOwn},
	{roleUser, domain.ObjActionLogs, domain.ActWriteOwn},

	{string(domain.RoleModerator), domain.ObjActionLogs, domain.ActRead},
	{string(domain.RoleModerator), domain.ObjSystemEvents, domain.ActRead},

	{string(domain.RoleAdmin), domain.ObjActionLogs, domain.ActWrite},
	{string(domain.RoleAdmin), domain.ObjSystemEvents, domain.ActCreate},
	{string(domain.RoleAdmin), domain.ObjSystemEvents, domain.ActResolve},
	{string(domain.RoleAdmin), domain.ObjDataChangeLogs, domain.ActCreate},
	{string(domain.RoleAdmin), domain.ObjDataChangeLogs, domain.ActRead},
	{string(domain.RoleAdmin), domain.ObjStatistics, domain.ActRead},
	{string(domain.RoleAdmin), domain.ObjRetention, domain.ActCleanup},
}

var baseGroups = [][]string{
	{string(domain.RoleClient), roleUser},
	{string(domain.RoleTherapist), roleUser},
	{string(domain.RoleModerator), roleUser},
	{string(domain.RoleAdmin), string(domain.RoleModerator)},
}

// Enforcer answers access questions from a casbin policy keyed by role.
type Enforcer struct {
	e *casbin.SyncedEnforcer
}

var _ ports.Authorizer = (*Enforcer)(nil)

// New loads the policy persisted in db, seeding the base matrix on first use.
func New(db *gorm.DB, log logrus.FieldLogger) (*Enforcer, error) {
	adapter, err := gormadapter.NewAdapterByDB(db)
	if err != nil {
		return nil, fmt.Errorf("create casbin adapter: %w", err)
	}
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m, adapter)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := e.LoadPolicy(); err != nil {
		return nil, fmt.Errorf("load policies: %w", err)
	}
	added, err := seed(e)
	if err != nil {
		return nil, err
	}
	log.WithField("seeded_rules", added).Info("RBAC enforcer initialized")
	return &Enforcer{e: e}, nil
}

// NewInMemory builds an enforcer holding only the base matrix.
func NewInMemory() (*Enforcer, error) {
	m, err := model.NewModelFromString(modelConf)
	if err != nil {
		return nil, fmt.Errorf("parse casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if _, err := seed(e); err != nil {
		return nil, err
	}
	return &Enforcer{e: e}, nil
}

func seed(e *casbin.SyncedEnforcer) (int, error) {
	added := 0
	for _, rule := range basePolicy {
		ok, err := e.AddPolicy(rule[0], rule[1], rule[2])
		if err != nil {
			return added, fmt.Errorf("seed policy %v: %w", rule, err)
		}
		if ok {
			added++
		}
	}
	for _, rule := range baseGroups {
		ok, err := e.AddGroupingPolicy(rule[0], rule[1])
		if err != nil {
			return added, fmt.Errorf("seed role %v: %w", rule, err)
		}
		if ok {
			added++
		}
	}
	return added, nil
}

func (e *Enforcer) Authorize(_ context.Context, role domain.Role, obj, act string) (bool, error) {
	if !role.Valid() {
		return false, nil
	}
	return e.e.Enforce(string(role), obj, act)
}

// Grant adds a rule on top of the base matrix. It reports whether the rule
// was new.
func (e *Enforcer) Grant(role domain.Role, obj, act string) (bool, error) {
	if err := checkRule(role, obj, act); err != nil {
		return false, err
	}
	return e.e.AddPolicy(string(role), obj, act)
}

// Revoke removes a rule and reports whether it existed. Base rules are seeded
// again on the next New.
func (e *Enforcer) Revoke(role domain.Role, obj, act string) (bool, error) {
	if err := checkRule(role, obj, act); err != nil {
		return false, err
	}
	return e.e.RemovePolicy(string(role), obj, act)
}

// Rules lists every stored rule as role, object, act.
func (e *Enforcer) Rules() ([][]string, error) {
	return e.e.GetPolicy()
}

func checkRule(role domain.Role, obj, act string) error {
	if !role.Valid() {
		return &domain.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", role)}
	}
	for _, rule := range basePolicy {
		if rule[1] == obj && rule[2] == act {
			return nil
		}
	}
	return &domain.ValidationError{Field: "rule", Message: fmt.Sprintf("unknown permission %s/%s", obj, act)}
}
