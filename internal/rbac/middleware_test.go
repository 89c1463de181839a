package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"finance-tower/internal/auth"
	"finance-tower/internal/identity"
)

type brokenMembership struct{}

func (brokenMembership) ProjectRole(context.Context, string, string) (string, error) {
	return "", errors.New("db down")
}

func newRouter(members MembershipResolver, userID string, extra ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := []gin.HandlerFunc{
		func(c *gin.Context) {
			if userID != "" {
				c.Request = c.Request.WithContext(auth.WithUser(c.Request.Context(), userID))
			}
			c.Next()
		},
		RequireProjectMember(members),
	}
	chain = append(chain, extra...)
	chain = append(chain, func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/projects/:project_id/x", chain...)
	return r
}

func serve(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w.Code
}

var members = identity.StaticMembership{
	"p1": {"alice": RoleOwner, "bob": RoleMember, "eve": "auditor"},
}

func TestRequireProjectMember(t *testing.T) {
	cases := []struct {
		name    string
		members MembershipResolver
		user    string
		path    string
		want    int
	}{
		{"owner", members, "alice", "/projects/p1/x", http.StatusOK},
		{"member", members, "bob", "/projects/p1/x", http.StatusOK},
		{"outsider", members, "bob", "/projects/p2/x", http.StatusForbidden},
		{"unknown role", members, "eve", "/projects/p1/x", http.StatusForbidden},
		{"anonymous", members, "", "/projects/p1/x", http.StatusUnauthorized},
		{"lookup failure", brokenMembership{}, "alice", "/projects/p1/x", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := serve(newRouter(tc.members, tc.user), tc.path); got != tc.want {
				t.Fatalf("expected %d, got %d", tc.want, got)
			}
		})
	}
}

func TestRequireOwner(t *testing.T) {
	if got := serve(newRouter(members, "alice", RequireOwner()), "/projects/p1/x"); got != http.StatusOK {
		t.Fatalf("owner: expected 200, got %d", got)
	}
	if got := serve(newRouter(members, "bob", RequireOwner()), "/projects/p1/x"); got != http.StatusForbidden {
		t.Fatalf("member: expected 403, got %d", got)
	}
}

func TestRequireAnyRole_NeedsResolvedRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RequireAnyRole(RoleOwner), func(c *gin.Context) { c.Status(http.StatusOK) })
	if got := serve(r, "/x"); got != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", got)
	}
}
