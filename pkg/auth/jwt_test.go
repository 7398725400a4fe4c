package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veilpii/veil/config"
)

func TestJWTVerifier(t *testing.T) {
	cfg := &config.Config{
		Auth: config.AuthConfig{
			Secret: "test-secret",
		},
	}
	verifier, err := JWTVerifier(cfg)
	require.NoError(t, err)

	router := chi.NewRouter()
	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	router.Use(verifier)
	router.Use(jwtauth.Authenticator)
	router.Handle("/", testHandler)

	serve := func(token string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		res := httptest.NewRecorder()
		router.ServeHTTP(res, req)
		return res.Code
	}

	t.Run("valid JWT token", func(t *testing.T) {
		token, err := GenerateJWT(cfg, time.Hour)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, serve(token))
	})

	t.Run("token signed by jwtauth", func(t *testing.T) {
		_, token, err := jwtauth.New(JwtAlg, []byte(cfg.Auth.Secret), nil).Encode(nil)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, serve(token))
	})

	t.Run("expired JWT token", func(t *testing.T) {
		token, err := GenerateJWT(cfg, -time.Minute)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, serve(token))
	})

	t.Run("missing JWT token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve(""))
	})

	t.Run("invalid JWT token", func(t *testing.T) {
		assert.Equal(t, http.StatusUnauthorized, serve("invalid-token"))
	})

	t.Run("missing secret", func(t *testing.T) {
		_, err := JWTVerifier(&config.Config{})
		assert.ErrorIs(t, err, ErrMissingSecret)
	})
}
