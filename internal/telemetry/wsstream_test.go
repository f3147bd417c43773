package telemetry_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-systems/planexec/internal/telemetry"
)

func TestJWTAuthValidatesBearerToken(t *testing.T) {
	auth := telemetry.NewJWTAuth("shared-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "operator-1",
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("shared-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/trace?plan_id=p1", nil)
	req.Header.Set("Authorization", "Bearer "+signed)

	subject, err := auth.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, "operator-1", subject)
}

func TestJWTAuthRejectsMissingToken(t *testing.T) {
	auth := telemetry.NewJWTAuth("shared-secret")
	req := httptest.NewRequest(http.MethodGet, "/trace", nil)

	_, err := auth.Authenticate(req)
	assert.ErrorIs(t, err, telemetry.ErrMissingToken)
}

func TestJWTAuthRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": "x"})
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/trace?token="+signed, nil)
	_, err = telemetry.NewJWTAuth("shared-secret").Authenticate(req)
	assert.ErrorIs(t, err, telemetry.ErrInvalidToken)
}

func TestHubClientCountStartsAtZero(t *testing.T) {
	hub := telemetry.NewHub(nil)
	assert.Equal(t, 0, hub.ClientCount())
}

func TestHubObserveTransitionWithNoSubscribersDoesNotPanic(t *testing.T) {
	hub := telemetry.NewHub(nil)
	assert.NotPanics(t, func() {
		hub.ObserveTransition(telemetry.TransitionEvent{PlanID: "unsubscribed-plan"})
	})
}
