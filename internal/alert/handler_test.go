package alert

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"KidDrop/internal/auth"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func sendAlertContext(t *testing.T, body string) (echo.Context, *httptest.ResponseRecorder) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/admin/send-alert", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.Set("user", &auth.JWTClaims{UserID: primitive.NewObjectID().Hex(), Role: auth.RoleAdmin})
	return c, rec
}

func validSendAlertBody(overrides map[string]interface{}) string {
	body := map[string]interface{}{
		"alertType":       TypeGeneral,
		"audienceType":    AudienceAll,
		"subject":         "Picture day",
		"messageBody":     "Tomorrow morning",
		"deliveryMethods": map[string]bool{"app": true, "email": true},
	}
	for k, v := range overrides {
		if v == nil {
			delete(body, k)
			continue
		}
		body[k] = v
	}
	raw, _ := json.Marshal(body)
	return string(raw)
}

func TestSendAlertValidation(t *testing.T) {
	tests := []struct {
		name      string
		overrides map[string]interface{}
	}{
		{"missing alert type", map[string]interface{}{"alertType": nil}},
		{"invalid alert type", map[string]interface{}{"alertType": "shouting"}},
		{"missing audience type", map[string]interface{}{"audienceType": nil}},
		{"invalid audience type", map[string]interface{}{"audienceType": "everyone"}},
		{"missing subject", map[string]interface{}{"subject": nil}},
		{"missing message body", map[string]interface{}{"messageBody": nil}},
		{"no delivery methods", map[string]interface{}{"deliveryMethods": map[string]bool{}}},
		{"grades audience without grades", map[string]interface{}{"audienceType": AudienceGrades}},
		{"individuals audience without ids", map[string]interface{}{"audienceType": AudienceIndividuals}},
		{"individuals audience with malformed id", map[string]interface{}{
			"audienceType":       AudienceIndividuals,
			"recipientParentIds": []string{"not-an-object-id"},
		}},
		{"schedule later without timestamp", map[string]interface{}{"scheduleLater": true}},
		{"schedule later with unparseable timestamp", map[string]interface{}{
			"scheduleLater":     true,
			"scheduledDateTime": "next tuesday",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeAlertStore()
			svc := testService(store, &fakeResolver{}, &fakeFanout{})
			h := NewAlertHandler(svc)

			c, rec := sendAlertContext(t, validSendAlertBody(tt.overrides))
			require.NoError(t, h.SendAlert(c))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, store.alerts, "a rejected submission must not persist anything")
		})
	}
}

func TestSendAlertImmediate(t *testing.T) {
	store := newFakeAlertStore()
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{recipients: testRecipients("a@x.com", "b@x.com")}, fanout)
	h := NewAlertHandler(svc)

	c, rec := sendAlertContext(t, validSendAlertBody(nil))
	require.NoError(t, h.SendAlert(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, fanout.callCount())
	require.Len(t, store.alerts, 1)
	for _, a := range store.alerts {
		assert.Equal(t, StatusSent, a.Status)
		assert.NotNil(t, a.SentAt)
	}
}

func TestSendAlertScheduled(t *testing.T) {
	store := newFakeAlertStore()
	fanout := &fakeFanout{}
	svc := testService(store, &fakeResolver{}, fanout)
	h := NewAlertHandler(svc)

	body := validSendAlertBody(map[string]interface{}{
		"scheduleLater":     true,
		"scheduledDateTime": "2031-05-01T08:30:00Z",
	})
	c, rec := sendAlertContext(t, body)
	require.NoError(t, h.SendAlert(c))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 0, fanout.callCount(), "a scheduled alert is not fanned out at submission")
	require.Len(t, store.alerts, 1)
	for _, a := range store.alerts {
		assert.Equal(t, StatusPending, a.Status)
		assert.Nil(t, a.SentAt)
		require.NotNil(t, a.ScheduledAt)
	}
}

func TestSendAlertIndividualsCarriesParsedIDs(t *testing.T) {
	store := newFakeAlertStore()
	svc := testService(store, &fakeResolver{}, &fakeFanout{})
	h := NewAlertHandler(svc)

	idA := primitive.NewObjectID()
	idB := primitive.NewObjectID()
	body := validSendAlertBody(map[string]interface{}{
		"audienceType":       AudienceIndividuals,
		"recipientParentIds": []string{idA.Hex(), idB.Hex()},
	})
	c, rec := sendAlertContext(t, body)
	require.NoError(t, h.SendAlert(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	for _, a := range store.alerts {
		assert.Equal(t, []primitive.ObjectID{idA, idB}, a.RecipientParentIDs)
	}
}
