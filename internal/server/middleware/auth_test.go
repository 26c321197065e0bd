package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dgrijalva/jwt-go"
	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func apiKeyRouter(key string) *gin.Engine {
	r := gin.New()
	r.GET("/protected", APIKeyAuth(key), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestAPIKeyAuthHeader(t *testing.T) {
	r := apiKeyRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "secret-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAPIKeyAuthBearer(t *testing.T) {
	r := apiKeyRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestAPIKeyAuthRejectsWrongKey(t *testing.T) {
	r := apiKeyRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "wrong")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPIKeyAuthRejectsMissingKey(t *testing.T) {
	r := apiKeyRouter("secret-key")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAPIKeyAuthRejectsWhenUnconfigured(t *testing.T) {
	// An empty configured key must fail closed, not open.
	r := apiKeyRouter("")

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-API-Key", "")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func adminRouter(secret string) *gin.Engine {
	r := gin.New()
	r.POST("/admin", AdminAuth(secret), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"admin_id": c.GetString("admin_id")})
	})
	return r
}

func adminToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return token
}

func TestAdminAuthValidToken(t *testing.T) {
	r := adminRouter("jwt-secret")
	token := adminToken(t, "jwt-secret", jwt.MapClaims{"role": "admin", "sub": "admin-1"})

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200, body %s", w.Code, w.Body.String())
	}
}

func TestAdminAuthRejectsNonAdminRole(t *testing.T) {
	r := adminRouter("jwt-secret")
	token := adminToken(t, "jwt-secret", jwt.MapClaims{"role": "user", "sub": "user-1"})

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
}

func TestAdminAuthRejectsWrongSecret(t *testing.T) {
	r := adminRouter("jwt-secret")
	token := adminToken(t, "other-secret", jwt.MapClaims{"role": "admin"})

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestAdminAuthRejectsMissingToken(t *testing.T) {
	r := adminRouter("jwt-secret")

	req := httptest.NewRequest(http.MethodPost, "/admin", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}
