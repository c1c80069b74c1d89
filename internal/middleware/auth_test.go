package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/case-assignment-api/internal/models"
	appErrors "github.com/noah-isme/case-assignment-api/pkg/errors"
)

type validatorStub map[string]*models.JWTClaims

func (v validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	if claims, ok := v[token]; ok {
		return claims, nil
	}
	return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handlers = append(handlers, func(c *gin.Context) {
		claims, _ := c.Get(ContextUserKey)
		if claims == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, claims.(*models.JWTClaims).UserID)
	})
	r.GET("/attorneys/:id/expertise", handlers...)
	return r
}

func serve(r *gin.Engine, path, auth string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	r.ServeHTTP(w, req)
	return w
}

var tokens = validatorStub{
	"admin-token":    {UserID: "admin-1", Role: models.RoleAdmin},
	"attorney-token": {UserID: "att-1", Role: models.RoleAttorney},
}

func TestJWT(t *testing.T) {
	r := newRouter(JWT(tokens))

	w := serve(r, "/attorneys/x/expertise", "Bearer admin-token")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "admin-1", w.Body.String())

	for name, header := range map[string]string{
		"missing":   "",
		"no scheme": "admin-token",
		"basic":     "Basic admin-token",
		"empty":     "Bearer ",
		"unknown":   "Bearer nope",
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, serve(r, "/attorneys/x/expertise", header).Code)
		})
	}
}

func TestOptionalJWT(t *testing.T) {
	r := newRouter(OptionalJWT(tokens))

	assert.Equal(t, "anonymous", serve(r, "/attorneys/x/expertise", "").Body.String())
	assert.Equal(t, "anonymous", serve(r, "/attorneys/x/expertise", "Bearer nope").Body.String())
	assert.Equal(t, "att-1", serve(r, "/attorneys/x/expertise", "bearer attorney-token").Body.String())
}

func TestRequireRolesWithSelf(t *testing.T) {
	r := newRouter(JWT(tokens), RBAC(string(models.RoleAdmin), "SELF"))

	assert.Equal(t, http.StatusOK, serve(r, "/attorneys/other/expertise", "Bearer admin-token").Code)
	assert.Equal(t, http.StatusOK, serve(r, "/attorneys/att-1/expertise", "Bearer attorney-token").Code)
	assert.Equal(t, http.StatusForbidden, serve(r, "/attorneys/other/expertise", "Bearer attorney-token").Code)

	strict := newRouter(JWT(tokens), RequireRoles(models.RoleAdmin, models.RoleSupervisor))
	assert.Equal(t, http.StatusForbidden, serve(strict, "/attorneys/att-1/expertise", "Bearer attorney-token").Code)

	unauthenticated := newRouter(RequireRoles(models.RoleAdmin))
	assert.Equal(t, http.StatusUnauthorized, serve(unauthenticated, "/attorneys/x/expertise", "").Code)
}
