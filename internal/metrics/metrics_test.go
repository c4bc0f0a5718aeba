package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestCollector_Handler(t *testing.T) {
	c := New()
	c.ObserveRequest("/analyze-image/", "POST", 200, 120*time.Millisecond)
	c.ObserveRequest("", "GET", 404, time.Millisecond)
	c.ObserveOutcome("success")
	c.ObserveOutcome("dimension")
	c.ObserveDetection(300*time.Millisecond, nil)
	c.ObserveDetection(time.Second, errors.New("timeout"))

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	text := string(body)

	wants := []string{
		`imagelens_http_requests_total{method="POST",route="/analyze-image/",status="200"} 1`,
		`imagelens_http_requests_total{method="GET",route="unmatched",status="404"} 1`,
		`imagelens_analysis_outcomes_total{outcome="success"} 1`,
		`imagelens_analysis_outcomes_total{outcome="dimension"} 1`,
		`imagelens_detection_duration_seconds_count{result="ok"} 1`,
		`imagelens_detection_duration_seconds_count{result="error"} 1`,
	}
	for _, want := range wants {
		if !strings.Contains(text, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}
