package drug

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/medvault-api/internal/model"
	apperrors "github.com/jwalitptl/medvault-api/pkg/errors"
	"github.com/jwalitptl/medvault-api/pkg/httputil"
)

type stubDrugs struct{}

func (stubDrugs) Lookup(_ context.Context, name string) (*model.DrugInfo, error) {
	if name == "crocin" {
		return &model.DrugInfo{Name: "Crocin", SearchName: "acetaminophen", Purpose: "Pain reliever"}, nil
	}
	return nil, apperrors.LookupUnavailable("No information found for '"+name+"'.", nil)
}

func (stubDrugs) KnownDrugs(context.Context) ([]string, error) {
	return []string{"Aspirin", "Crocin"}, nil
}

func (stubDrugs) AddMapping(context.Context, model.DrugMapping) error { return nil }

func serve(path string) *httptest.ResponseRecorder {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(stubDrugs{}).RegisterRoutes(r.Group(""))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListDrugs(t *testing.T) {
	w := serve("/drugs")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `["Aspirin","Crocin"]`)
}

func TestLookupDrug(t *testing.T) {
	w := serve("/drugs/crocin")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"search_name":"acetaminophen"`)
}

func TestLookupDrug_UnavailableIsInformational(t *testing.T) {
	w := serve("/drugs/unobtainium")
	require.Equal(t, http.StatusOK, w.Code)

	var body httputil.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "error", body.Status)
	require.NotNil(t, body.Error)
	assert.Equal(t, "No information found for 'unobtainium'.", body.Error.Message)
}
