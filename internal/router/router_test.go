package router

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	authhandler "github.com/jwalitptl/medvault-api/internal/handler/auth"
	drughandler "github.com/jwalitptl/medvault-api/internal/handler/drug"
	"github.com/jwalitptl/medvault-api/internal/handler/health"
	patienthandler "github.com/jwalitptl/medvault-api/internal/handler/patient"
	promhandler "github.com/jwalitptl/medvault-api/internal/handler/prometheus"
	sharehandler "github.com/jwalitptl/medvault-api/internal/handler/share"
	"github.com/jwalitptl/medvault-api/internal/middleware"
	"github.com/jwalitptl/medvault-api/internal/repository/csvstore"
	authsvc "github.com/jwalitptl/medvault-api/internal/service/auth"
	drugsvc "github.com/jwalitptl/medvault-api/internal/service/drug"
	patientsvc "github.com/jwalitptl/medvault-api/internal/service/patient"
	sharesvc "github.com/jwalitptl/medvault-api/internal/service/share"
	"github.com/jwalitptl/medvault-api/internal/session"
	"github.com/jwalitptl/medvault-api/internal/storage"
	"github.com/jwalitptl/medvault-api/pkg/auth"
	"github.com/jwalitptl/medvault-api/pkg/mailer"
	"github.com/jwalitptl/medvault-api/pkg/metrics"
	"github.com/jwalitptl/medvault-api/pkg/openfda"
)

type envelope struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *struct {
		Message string `json:"message"`
	} `json:"error"`
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	require.NoError(t, middleware.RegisterValidators())

	fda := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":"NOT_FOUND"}}`))
	}))
	t.Cleanup(fda.Close)

	dir := t.TempDir()
	registry := prometheus.NewRegistry()
	m := metrics.New("medvault", registry)

	patients, err := csvstore.NewPatientRepository(filepath.Join(dir, "patients.csv"), m)
	require.NoError(t, err)
	drugMap, err := csvstore.NewDrugMapRepository(filepath.Join(dir, "drug_map.csv"))
	require.NoError(t, err)
	tokens, err := auth.NewJWTService("router-test", time.Hour, "medvault")
	require.NoError(t, err)

	patientService := patientsvc.NewService(patients, storage.NewNamespaces(filepath.Join(dir, "uploads"), 1<<20), nil, m)
	controller := session.NewController(authsvc.NewService(patients), tokens, session.NewMemoryRevoker(time.Minute), nil, m)
	drugService := drugsvc.NewService(drugMap, openfda.NewClient(openfda.Config{BaseURL: fda.URL, Timeout: time.Second}), time.Hour, nil, m)
	shareService := sharesvc.NewService(patientService, mailer.New(mailer.Config{}), sharesvc.Config{BaseURL: "https://medvault.example.com"}, nil)

	r := NewRouter(
		middleware.NewAuthMiddleware(controller),
		middleware.NewAuditMiddleware(nil),
		promhandler.New("medvault", registry),
		health.NewHandler(map[string]health.Checker{"store": patients.(health.Checker)}),
		[]Handler{
			authhandler.NewHandler(controller),
			patienthandler.NewHandler(patientService),
			sharehandler.NewHandler(shareService),
			drughandler.NewHandler(drugService),
		},
		RouterConfig{
			Mode:           gin.TestMode,
			CORSConfig:     middleware.DefaultCORSConfig(),
			SecurityConfig: middleware.DefaultSecurityConfig(),
			SizeLimit:      middleware.DefaultSizeLimitConfig(),
			RequestTimeout: 5 * time.Second,
			MetricsEnabled: true,
		},
	)
	r.Setup()
	return r.Engine()
}

func call(t *testing.T, h http.Handler, method, path, token string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if bytes.HasPrefix(bytes.TrimSpace(w.Body.Bytes()), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestPatientJourney(t *testing.T) {
	h := newTestRouter(t)

	// create a profile
	w, env := call(t, h, http.MethodPost, "/api/v1/patients", "", map[string]interface{}{
		"name":                "Alice",
		"dob":                 "1990-01-01",
		"blood_group":         "O+",
		"current_medications": []string{"Crocin"},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created struct {
		PatientID string `json:"patient_id"`
		PIN       string `json:"pin"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, "PAT001", created.PatientID)
	assert.Equal(t, "no-store", w.Header().Get("Cache-Control"))

	// log in
	w, env = call(t, h, http.MethodPost, "/api/v1/auth/login", "", map[string]string{"patient_id": created.PatientID, "pin": created.PIN})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var sess struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &sess))

	w, _ = call(t, h, http.MethodGet, "/api/v1/me", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"authenticated"`)

	// share and open the link
	w, env = call(t, h, http.MethodGet, "/api/v1/me/share", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var link struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &link))
	assert.Equal(t, created.PatientID+"_"+created.PIN, link.Token)

	w, env = call(t, h, http.MethodGet, "/api/v1/auth/link?token="+link.Token, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var view struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &view))

	w, _ = call(t, h, http.MethodGet, "/api/v1/me", view.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"mode":"view_only"`)

	w, _ = call(t, h, http.MethodPut, "/api/v1/me", view.Token, map[string]string{"name": "Mallory"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, _ = call(t, h, http.MethodGet, "/api/v1/me/share", view.Token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// e-mail is not configured
	w, _ = call(t, h, http.MethodPost, "/api/v1/me/share/email", sess.Token, map[string]string{"to": "doc@example.com"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	// end both sessions
	w, _ = call(t, h, http.MethodPost, "/api/v1/auth/back", view.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	w, _ = call(t, h, http.MethodPost, "/api/v1/auth/logout", sess.Token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, h, http.MethodGet, "/api/v1/me", sess.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w, _ = call(t, h, http.MethodGet, "/api/v1/me", view.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDrugLookupNotFound(t *testing.T) {
	h := newTestRouter(t)

	w, env := call(t, h, http.MethodGet, "/api/v1/drugs/Dolo", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.Error)
	assert.Equal(t, "No information found for 'Dolo'.", env.Error.Message)

	w, env = call(t, h, http.MethodGet, "/api/v1/drugs", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var names []string
	require.NoError(t, json.Unmarshal(env.Data, &names))
	assert.Contains(t, names, "Paracetamol")
	assert.Len(t, names, 10)
}

func TestHealthAndMetrics(t *testing.T) {
	h := newTestRouter(t)

	w, _ := call(t, h, http.MethodGet, "/api/v1/health/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, _ = call(t, h, http.MethodGet, "/api/v1/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "medvault_http_requests_total")
}

func TestRequestIDAndSecurityHeaders(t *testing.T) {
	h := newTestRouter(t)

	w, _ := call(t, h, http.MethodGet, "/api/v1/health/live", "", nil)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "no-referrer", w.Header().Get("Referrer-Policy"))
}
