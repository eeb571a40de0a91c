package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Middleware())
	r.GET("/order/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/order/"+id, nil))
	}

	body := scrape(t)
	assert.Contains(t, body, `storefront_http_requests_total{method="GET",path="/order/:id",status="200"} 3`)
	assert.NotContains(t, body, `path="/order/a"`)
}

func TestRecordTransitionExposed(t *testing.T) {
	RecordTransition("dispatch", "ok")
	RecordPublishFailure()

	body := scrape(t)
	assert.Contains(t, body, `storefront_order_transitions_total{action="dispatch",result="ok"} 1`)
	assert.Contains(t, body, "storefront_event_publish_failures_total 1")
}
