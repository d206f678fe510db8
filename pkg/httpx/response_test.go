package httpx

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/structpb"
)

func newContext(accept string) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	if accept != "" {
		c.Request.Header.Set("Accept", accept)
	}
	return c, w
}

func TestWriteObjectJSON(t *testing.T) {
	c, w := newContext("")
	WriteObject(c, http.StatusOK, gin.H{"total": 2})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"total":2}`, w.Body.String())
}

func TestWriteObjectProtobuf(t *testing.T) {
	c, w := newContext(binding.MIMEPROTOBUF)
	WriteObject(c, http.StatusOK, map[string]interface{}{"query": "go", "total": 2})

	require.Equal(t, http.StatusOK, w.Code)
	var value structpb.Value
	require.NoError(t, proto.Unmarshal(w.Body.Bytes(), &value))
	fields := value.GetStructValue().GetFields()
	assert.Equal(t, "go", fields["query"].GetStringValue())
	assert.Equal(t, float64(2), fields["total"].GetNumberValue())
}

func TestWriteError(t *testing.T) {
	c, w := newContext("")
	WriteError(c, http.StatusBadRequest, "limit must be positive")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"code":400,"message":"limit must be positive"}`, w.Body.String())
	assert.True(t, c.IsAborted())
}
