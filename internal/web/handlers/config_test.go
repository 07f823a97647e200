package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestConfigHandler_Get(t *testing.T) {
	cfg := testConfig()
	cfg.Web.APIToken = "secret"
	handler := NewConfigHandler(cfg)

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	assertStatusCode(t, recorder, http.StatusOK)
	assertContentType(t, recorder, "application/json")

	var resp ConfigResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.MatchThreshold != 0.35 {
		t.Errorf("expected threshold 0.35, got %v", resp.MatchThreshold)
	}
	if resp.MatchPolicy != "request_order" {
		t.Errorf("expected request_order policy, got %s", resp.MatchPolicy)
	}
	if resp.PublicImages {
		t.Error("expected private images when only a bucket is configured")
	}
	if !resp.AuthRequired {
		t.Error("expected auth_required with an API token set")
	}
}

func TestConfigHandler_DoesNotLeakSecrets(t *testing.T) {
	cfg := testConfig()
	cfg.Web.APIToken = "super-secret-token"
	cfg.Storage.SecretKey = "aws-secret"

	recorder := httptest.NewRecorder()
	NewConfigHandler(cfg).Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/config", nil))

	body := recorder.Body.String()
	for _, secret := range []string{"super-secret-token", "aws-secret"} {
		if strings.Contains(body, secret) {
			t.Errorf("response leaks %q: %s", secret, body)
		}
	}
}
