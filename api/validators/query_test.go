package validators

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit=25", nil)
	got, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, got)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil)
	got, err = ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 20, got)

	for _, raw := range []string{"abc", "0", "101"} {
		req = httptest.NewRequest(http.MethodGet, "/api/v1/orders?limit="+raw, nil)
		_, err = ParseQueryInt(req, "limit", 20, 1, 100)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), raw)
	}
}
