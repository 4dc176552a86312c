package handlers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"shipcompliance-backend/repository"
	"shipcompliance-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv wires the API surface against temp-dir stores and a fake
// generative endpoint.
type testEnv struct {
	router *gin.Engine
	rules  *repository.RuleRepository
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gemini := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reply := map[string]any{
			"candidates": []map[string]any{
				{
					"content": map[string]any{
						"parts": []map[string]any{
							{"text": "```json\n{\"compliant\": true, \"compliance_score\": 90, \"risk_level\": \"Low\"}\n```"},
						},
					},
					"finishReason": "STOP",
				},
			},
		}
		json.NewEncoder(w).Encode(reply)
	}))
	t.Cleanup(gemini.Close)

	keyring, err := service.NewKeyring([]string{"key-a", "key-b"})
	require.NoError(t, err)

	ruleRepo, err := repository.NewRuleRepository(filepath.Join(t.TempDir(), "rules.json"))
	require.NoError(t, err)
	regulationRepo := repository.NewRegulationRepository(t.TempDir())

	complianceService := service.NewComplianceService(
		service.ComplianceWithKeyring(keyring),
		service.ComplianceWithEndpoint(gemini.URL),
	)
	batchService := service.NewBatchService(
		service.BatchWithRuleRepository(ruleRepo),
		service.BatchWithKeyring(keyring),
		service.BatchWithEvaluator(complianceService),
	)

	ruleHandler := NewRuleHandler(ruleRepo, nil)
	complianceHandler := NewComplianceHandler(ruleRepo, regulationRepo, complianceService, keyring)
	batchHandler := NewBatchHandler(batchService)

	r := gin.New()
	api := r.Group("/api")
	{
		api.GET("/rules", ruleHandler.ListRules)
		api.POST("/rules", ruleHandler.AddRule)
		api.GET("/rules/:source/:destination", ruleHandler.GetRules)
		api.DELETE("/rules/:source/:destination", ruleHandler.DeleteRule)
		api.POST("/check_compliance", complianceHandler.CheckCompliance)
		api.POST("/check_all", complianceHandler.CheckAll)
		api.POST("/check_bulk", batchHandler.CheckBulk)
		api.GET("/batches", batchHandler.ListBatches)
		api.GET("/admin/routes", ruleHandler.ListRoutes)
	}

	return &testEnv{router: r, rules: ruleRepo}
}

func (e *testEnv) doJSON(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRuleLifecycle(t *testing.T) {
	env := newTestEnv(t)

	// Empty store: route lookup yields an empty list, not an error.
	w := env.doJSON(t, http.MethodGet, "/api/rules/India/US", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Empty(t, body["rules"])

	// Add a rule.
	w = env.doJSON(t, http.MethodPost, "/api/rules", map[string]string{
		"source":      "India",
		"destination": "US",
		"rule":        "X",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "Rule added successfully", body["message"])
	assert.Equal(t, "india-us", body["route"])

	// The route now returns it.
	w = env.doJSON(t, http.MethodGet, "/api/rules/India/US", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, []any{"X"}, body["rules"])

	// Adding the same rule again is a no-op.
	w = env.doJSON(t, http.MethodPost, "/api/rules", map[string]string{
		"source":      "India",
		"destination": "US",
		"rule":        "X",
	})
	require.Equal(t, http.StatusOK, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "Rule already exists", body["message"])

	// Deleting an absent rule is a 404 with an error body.
	w = env.doJSON(t, http.MethodDelete, "/api/rules/India/US", map[string]string{"rule": "Y"})
	require.Equal(t, http.StatusNotFound, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, "Rule not found", body["error"])
}

func TestAddRule_MissingFields(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodPost, "/api/rules", map[string]string{"source": "India"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Source, destination, and rule are required", body["error"])
}

func TestCheckCompliance_NoRulesRoute(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodPost, "/api/check_compliance", map[string]any{
		"source":      "India",
		"destination": "US",
		"shipment_details": map[string]any{
			"itemDescription": "textiles",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	results, ok := body["results"].([]any)
	require.True(t, ok)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "General Compliance", first["section"])
	compliance := first["compliance"].(map[string]any)
	assert.Equal(t, true, compliance["compliant"])
}

func TestCheckCompliance_WithRules(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.rules.AddRule("India", "US", "No lithium batteries")
	require.NoError(t, err)

	w := env.doJSON(t, http.MethodPost, "/api/check_compliance", map[string]any{
		"source":      "India",
		"destination": "US",
		"shipment_details": map[string]any{
			"itemDescription": "textiles",
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, "Trade Compliance", first["section"])
	compliance := first["compliance"].(map[string]any)
	assert.Equal(t, true, compliance["compliant"])
	assert.Equal(t, float64(90), compliance["compliance_score"])
}

func TestCheckCompliance_MissingShipmentDetails(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodPost, "/api/check_compliance", map[string]any{
		"source":      "India",
		"destination": "US",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "Shipment details are required", body["error"])
}

func TestCheckAll_UnknownRouteIs404(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodPost, "/api/check_all", map[string]any{
		"source":           "France",
		"destination":      "Brazil",
		"shipment_details": map[string]any{},
	})
	require.Equal(t, http.StatusNotFound, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, "No regulations found for France to Brazil", body["error"])
}

func postCSV(t *testing.T, env *testEnv, filename, content string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	fmt.Fprint(part, content)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/check_bulk", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	return w
}

func TestCheckBulk_MixedRows(t *testing.T) {
	env := newTestEnv(t)

	w := postCSV(t, env, "shipments.csv", "source,destination\nIN,US\n,US\n")
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["total_shipments"])
	assert.Equal(t, float64(1), body["processed"])
	assert.Equal(t, float64(1), body["failed"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	second := results[1].(map[string]any)
	assert.Equal(t, "failed", second["status"])
	assert.Contains(t, second["error"].(string), "source")
}

func TestCheckBulk_RejectsBadUploads(t *testing.T) {
	env := newTestEnv(t)

	t.Run("no file", func(t *testing.T) {
		w := env.doJSON(t, http.MethodPost, "/api/check_bulk", nil)
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "No file uploaded", decodeBody(t, w)["error"])
	})

	t.Run("not a csv", func(t *testing.T) {
		w := postCSV(t, env, "shipments.xlsx", "junk")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Please upload a valid CSV file", decodeBody(t, w)["error"])
	})

	t.Run("missing columns", func(t *testing.T) {
		w := postCSV(t, env, "shipments.csv", "source,item\nIN,textiles\n")
		require.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "CSV must contain 'source' and 'destination' columns", decodeBody(t, w)["error"])
	})
}

func TestListBatches_WithoutPersistence(t *testing.T) {
	env := newTestEnv(t)

	w := env.doJSON(t, http.MethodGet, "/api/batches", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "Batch history persistence is not configured", decodeBody(t, w)["error"])
}

func TestListRoutes(t *testing.T) {
	env := newTestEnv(t)
	_, _, err := env.rules.AddRule("India", "US", "Rule A")
	require.NoError(t, err)
	_, _, err = env.rules.AddRule("India", "US", "Rule B")
	require.NoError(t, err)

	w := env.doJSON(t, http.MethodGet, "/api/admin/routes", nil)
	require.Equal(t, http.StatusOK, w.Code)

	body := decodeBody(t, w)
	routes := body["routes"].([]any)
	require.Len(t, routes, 1)
	first := routes[0].(map[string]any)
	assert.Equal(t, "india", first["source"])
	assert.Equal(t, "us", first["destination"])
	assert.Equal(t, float64(2), first["rule_count"])
}
