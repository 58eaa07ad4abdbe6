package auth

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initDataFor(id string) string {
	v := url.Values{}
	v.Set("auth_date", "1700000000")
	v.Set("user", `{"id":`+id+`,"username":"alice"}`)
	v.Set("hash", "ignored-in-debug")
	return v.Encode()
}

func TestExtractTelegramData(t *testing.T) {
	data, err := ExtractTelegramData(initDataFor("42"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), data.ID)
	assert.Equal(t, "alice", data.Username)
	assert.Equal(t, int64(1700000000), data.AuthDate.Unix())

	_, err = ExtractTelegramData("auth_date=abc")
	assert.Error(t, err)
}

func TestTelegramAuthMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	tests := []struct {
		name           string
		header         string
		expectedStatus int
	}{
		{name: "missing header", header: "", expectedStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Bearer abc", expectedStatus: http.StatusUnauthorized},
		{name: "bad payload", header: "Telegram auth_date=1&user=notjson", expectedStatus: http.StatusUnauthorized},
		{name: "valid in debug mode", header: "Telegram " + initDataFor("7"), expectedStatus: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := gin.New()
			router.Use(NewTelegramAuth("token", true).TelegramAuthMiddleware())
			router.GET("/me", func(c *gin.Context) {
				user, ok := UserFromContext(c)
				require.True(t, ok)
				c.JSON(http.StatusOK, gin.H{"id": user.ID})
			})

			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestTelegramAuthMiddleware_RejectsUnsignedOutsideDebug(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(NewTelegramAuth("token", false).TelegramAuthMiddleware())
	router.GET("/me", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Telegram "+initDataFor("7"))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
