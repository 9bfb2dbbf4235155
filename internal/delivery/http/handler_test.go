package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/mealsmith/backend/config"
	"github.com/mealsmith/backend/internal/domain"
	"github.com/mealsmith/backend/internal/usecase"
)

// TestMain sets up test environment before running tests
func TestMain(m *testing.M) {
	// Set Gin to test mode once for all tests
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// tableLookup serves canned records for handler tests.
type tableLookup map[string]*domain.NutritionRecord

func (t tableLookup) Lookup(ctx context.Context, key string) (*domain.NutritionRecord, error) {
	if rec, ok := t[key]; ok {
		return rec, nil
	}
	return nil, domain.ErrRecordNotFound
}

func setupTestRouter(lookup domain.NutritionLookup, pipelineCfg usecase.PipelineConfig) *gin.Engine {
	cfg := &config.Config{
		Server: config.ServerConfig{
			Port:           "8080",
			Environment:    "test",
			AllowedOrigins: []string{"http://localhost:3000"},
		},
	}
	pipeline := usecase.NewPipeline(lookup, nil, pipelineCfg)
	handler := NewHandler(pipeline, nil)
	return SetupRouter(cfg, handler)
}

func defaultRecords() tableLookup {
	return tableLookup{
		"chicken breast": {Calories: 114, Protein: 22.5, Fat: 2.6, Source: domain.SourceHotpath, Confidence: 1},
		"white rice":     {Calories: 349, Protein: 7, Fat: 0.6, Carbs: 79, Source: domain.SourceHotpath, Confidence: 1},
	}
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestHealthCheck(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["status"] != "healthy" {
		t.Errorf("status field = %v, want healthy", body["status"])
	}
}

func TestComputePlan_Success(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	w := postJSON(router, "/api/v1/plans/compute", `{
		"meals": [{
			"type": "lunch",
			"name": "chicken and rice",
			"items": [
				{"key": "chicken breast", "quantityValue": 200, "quantityUnit": "g", "stateHint": "raw"},
				{"key": "white rice", "quantityValue": "300", "quantityUnit": "grams", "stateHint": "cooked"}
			]
		}],
		"targets": {"calories": 600, "protein": 50}
	}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", w.Code, w.Body.String())
	}

	var result usecase.ExecuteResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if result.TraceID == "" {
		t.Error("traceId missing from response")
	}
	if len(result.Meals) != 1 || len(result.Meals[0].Macros) != 2 {
		t.Fatalf("meals = %+v, want one meal with two macro results", result.Meals)
	}
	if result.DayTotals.Calories <= 0 {
		t.Errorf("dayTotals.calories = %v, want positive", result.DayTotals.Calories)
	}
	// The string quantity and unit spelling were repaired en route.
	if len(result.Validation.Corrections) == 0 {
		t.Error("validation.corrections empty, want coercion audit entries")
	}
}

func TestComputePlan_BindErrors(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not json at all"},
		{"missing meals field", `{"targets": {"calories": 2000}}`},
		{"meals is not an array", `{"meals": "lunch"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, "/api/v1/plans/compute", tt.body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400; body: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestComputePlan_StructuralFailure(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	// Meals present but every one has an empty items array.
	w := postJSON(router, "/api/v1/plans/compute", `{
		"meals": [{"type": "lunch", "name": "empty", "items": []}]
	}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400; body: %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["traceId"] == "" || body["traceId"] == nil {
		t.Error("traceId missing from error body")
	}
	if body["stage"] == "" || body["stage"] == nil {
		t.Error("stage missing from error body")
	}
}

func TestComputePlan_ValidationExhausted(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	// Items without keys are a schema failure; HTTP callers have no
	// regeneration callback, so it surfaces immediately as 422.
	w := postJSON(router, "/api/v1/plans/compute", `{
		"meals": [{
			"type": "lunch",
			"name": "broken",
			"items": [{"quantityValue": 100, "quantityUnit": "g"}]
		}]
	}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", w.Code, w.Body.String())
	}

	var body map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON response: %v", err)
	}
	if body["details"] == nil {
		t.Error("details missing from error body")
	}
}

func TestComputePlan_ResponseBlocked(t *testing.T) {
	// Every record deviates ~30% from its macro-implied calories, so the
	// whole plan trips the response block.
	flagged := tableLookup{
		"chicken breast": {Calories: 148, Protein: 22.5, Fat: 2.6, Source: domain.SourceHotpath},
		"white rice":     {Calories: 454, Protein: 7, Fat: 0.6, Carbs: 79, Source: domain.SourceHotpath},
	}
	router := setupTestRouter(flagged, usecase.PipelineConfig{})

	w := postJSON(router, "/api/v1/plans/compute", `{
		"meals": [{
			"type": "lunch",
			"name": "chicken and rice",
			"items": [
				{"key": "chicken breast", "quantityValue": 200, "quantityUnit": "g", "stateHint": "raw"},
				{"key": "white rice", "quantityValue": 300, "quantityUnit": "g", "stateHint": "cooked"}
			]
		}]
	}`)

	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422; body: %s", w.Code, w.Body.String())
	}
}

func TestCORSMiddleware(t *testing.T) {
	router := setupTestRouter(defaultRecords(), usecase.PipelineConfig{})

	t.Run("allowed origin gets CORS headers", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q, want the origin echoed", got)
		}
	})

	t.Run("disallowed origin gets none", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "http://evil.example.com")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if got := w.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})

	t.Run("preflight short-circuits", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/v1/plans/compute", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		if w.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", w.Code)
		}
	})
}

func TestIsAllowedOrigin(t *testing.T) {
	tests := []struct {
		name           string
		origin         string
		allowedOrigins []string
		want           bool
	}{
		{"exact match", "http://localhost:3000", []string{"http://localhost:3000"}, true},
		{"wildcard suffix", "https://app.mealsmith.dev", []string{"https://*"}, true},
		{"allow all", "http://anything.example.com", []string{"*"}, true},
		{"no match", "http://evil.example.com", []string{"http://localhost:3000"}, false},
		{"empty list", "http://localhost:3000", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isAllowedOrigin(tt.origin, tt.allowedOrigins); got != tt.want {
				t.Errorf("isAllowedOrigin(%q, %v) = %v, want %v", tt.origin, tt.allowedOrigins, got, tt.want)
			}
		})
	}
}
