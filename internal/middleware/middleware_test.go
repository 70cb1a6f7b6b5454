package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/noah-isme/permitflow-api/internal/models"
	appErrors "github.com/noah-isme/permitflow-api/pkg/errors"
)

type stubVerifier struct {
	claims *models.JWTClaims
	err    error
	seen   string
}

func (s *stubVerifier) ValidateToken(token string) (*models.JWTClaims, error) {
	s.seen = token
	return s.claims, s.err
}

func adminRouter(verifier tokenValidator, logger *zap.Logger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/admin/permits", JWT(verifier), RequireRoles(models.RoleAdmin), Audit(logger, "permits.list"), func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return r
}

func serve(r *gin.Engine, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/permits", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestJWTAndRoles(t *testing.T) {
	admin := &models.JWTClaims{Email: "ops@example.com", Roles: []models.UserRole{models.RoleAdmin}}
	core, logs := observer.New(zap.InfoLevel)

	verifier := &stubVerifier{claims: admin}
	rec := serve(adminRouter(verifier, zap.New(core)), "Bearer abc.def")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc.def", verifier.seen)
	require.Equal(t, 1, logs.FilterMessage("admin_access").Len())
	assert.Equal(t, "ops@example.com", logs.All()[0].ContextMap()["email"])

	assert.Equal(t, http.StatusUnauthorized, serve(adminRouter(verifier, nil), "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(adminRouter(verifier, nil), "Basic xyz").Code)

	rejected := &stubVerifier{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}
	assert.Equal(t, http.StatusUnauthorized, serve(adminRouter(rejected, nil), "Bearer bad").Code)

	viewer := &stubVerifier{claims: &models.JWTClaims{Roles: []models.UserRole{"VIEWER"}}}
	assert.Equal(t, http.StatusForbidden, serve(adminRouter(viewer, nil), "Bearer ok").Code)
}

func TestResponseMeta(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var meta map[string]interface{}
	r := gin.New()
	r.Use(WithResponseMeta())
	r.GET("/summary", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/summary", nil))

	require.NotNil(t, meta)
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, "processing_time_ms")
	assert.Nil(t, ExtractMeta(nil))
}
