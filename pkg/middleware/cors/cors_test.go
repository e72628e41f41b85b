package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(New(origins))
	r.GET("/tutors", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func TestListedOriginIsEchoed(t *testing.T) {
	r := newRouter([]string{"https://tutorhub.example/"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tutors", nil)
	req.Header.Set("Origin", "https://TutorHub.example")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "https://TutorHub.example", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestUnlistedOriginGetsNoGrant(t *testing.T) {
	r := newRouter([]string{"https://tutorhub.example"})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/tutors", nil)
	req.Header.Set("Origin", "https://evil.example")
	r.ServeHTTP(w, req)

	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestPreflightShortCircuits(t *testing.T) {
	r := newRouter(nil)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/tutors", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Methods"), http.MethodPatch)
}
