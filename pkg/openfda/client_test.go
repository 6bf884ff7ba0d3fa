package openfda

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_LabelByBrandName(t *testing.T) {
	var gotSearch, gotLimit string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/drug/label.json", r.URL.Path)
		gotSearch = r.URL.Query().Get("search")
		gotLimit = r.URL.Query().Get("limit")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"purpose":["Pain reliever"],"warnings":["Liver warning"],"active_ingredient":["Acetaminophen 500 mg"]}]}`))
	}))
	defer srv.Close()

	c := NewClient(Config{BaseURL: srv.URL})
	label, err := c.LabelByBrandName(context.Background(), "acetaminophen")
	require.NoError(t, err)

	assert.Equal(t, `openfda.brand_name:"acetaminophen"`, gotSearch)
	assert.Equal(t, "1", gotLimit)
	assert.Equal(t, []string{"Pain reliever"}, label.Purpose)
	assert.Equal(t, []string{"Liver warning"}, label.Warnings)
	assert.Equal(t, []string{"Acetaminophen 500 mg"}, label.ActiveIngredient)
}

func TestClient_NotFound(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		payload string
	}{
		{"404 error document", http.StatusNotFound, `{"error":{"code":"NOT_FOUND"}}`},
		{"empty results", http.StatusOK, `{"results":[]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.payload))
			}))
			defer srv.Close()

			_, err := NewClient(Config{BaseURL: srv.URL}).LabelByBrandName(context.Background(), "nothing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestClient_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(Config{BaseURL: srv.URL}).LabelByBrandName(context.Background(), "aspirin")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}
