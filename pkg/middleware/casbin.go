package middleware

import (
	"log"
	"net/http"
	"os"
	"sync"

	"KidDrop/internal/auth"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"
	"github.com/casbin/casbin/v2/util"
	"github.com/labstack/echo/v4"
)

var (
	enforcer     *casbin.Enforcer
	enforcerOnce sync.Once
)

// getCasbinModel returns the RBAC model as a string.
func getCasbinModel() string {
	return `[request_definition]
	r = sub, obj, act

	[policy_definition]
	p = sub, obj, act, eft

	[role_definition]
	g = _, _

	[policy_effect]
	e = some(where (p.eft == allow))

	[matchers]
	m = g(r.sub, p.sub) && keyMatch(r.obj, p.obj) && r.act == p.act`
}

// InitCasbinEnforcer initializes the Casbin enforcer singleton with the model
// defined in code and the policy from rbac_policy.csv.
func InitCasbinEnforcer() (*casbin.Enforcer, error) {
	var err error
	enforcerOnce.Do(func() {
		if _, statErr := os.Stat("rbac_policy.csv"); os.IsNotExist(statErr) {
			log.Fatalf("rbac_policy.csv not found: %v", statErr)
		}
		m, errM := model.NewModelFromString(getCasbinModel())
		if errM != nil {
			err = errM
			return
		}
		adapter := fileadapter.NewAdapter("rbac_policy.csv")
		enforcer, err = casbin.NewEnforcer(m, adapter)
		if err != nil || enforcer == nil {
			log.Fatalf("error creating Casbin enforcer: %v", err)
		}
		enforcer.AddFunction("keyMatch", util.KeyMatchFunc)
	})
	return enforcer, err
}

// CasbinMiddleware enforces role-based access for each request.
func CasbinMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := c.Get("user").(*auth.JWTClaims)
		if !ok || claims == nil {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Unauthorized: missing user claims"})
		}
		enf, err := InitCasbinEnforcer()
		if err != nil {
			log.Println("Casbin enforcer error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		allowed, err := enf.Enforce(claims.Role, c.Request().URL.Path, c.Request().Method)
		if err != nil {
			log.Println("Casbin enforce error:", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "RBAC system error"})
		}
		if !allowed {
			return c.JSON(http.StatusForbidden, map[string]string{"error": "Forbidden: insufficient permissions"})
		}
		return next(c)
	}
}
