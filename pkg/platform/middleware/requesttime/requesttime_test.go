package requesttime

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"civicportal/pkg/requestcontext"
)

func TestMiddleware_PinsRequestTime(t *testing.T) {
	var first, second time.Time
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		time.Sleep(5 * time.Millisecond)
		second = requestcontext.Now(r.Context())
	}))

	before := time.Now()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/admin/service_requests/42/status", nil))
	after := time.Now()

	assert.False(t, first.Before(before))
	assert.False(t, first.After(after))
	assert.Equal(t, first, second, "time should not drift within a request")
}

func TestNow_FallsBackOutsideRequests(t *testing.T) {
	before := time.Now()
	got := requestcontext.Now(context.Background())
	assert.False(t, got.Before(before))

	fixed := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	assert.Equal(t, fixed, requestcontext.Now(requestcontext.WithTime(context.Background(), fixed)))
}
