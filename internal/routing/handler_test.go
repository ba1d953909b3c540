package routing

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
)

type fakeSessions struct {
	err error
}

func (f *fakeSessions) Authenticate(ctx context.Context, identity string) (*salesforce.Session, error) {
	if f.err != nil {
		return nil, f.err
	}
	return testSess(), nil
}

type fakeRouter struct {
	worker string
	err    error

	conversationSid string
	proxyNumber     string
}

func (f *fakeRouter) RouteConversation(ctx context.Context, sess *salesforce.Session, conversationSid, proxyNumber string) (string, error) {
	f.conversationSid = conversationSid
	f.proxyNumber = proxyNumber
	return f.worker, f.err
}

func postRouting(h *Handler, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/webhooks/frontline/routing", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.RoutingWebhook(rec, req)
	return rec
}

func TestRoutingWebhookSuccess(t *testing.T) {
	router := &fakeRouter{worker: "u1"}
	h := NewHandler(&fakeSessions{}, router, "", nil, nil)

	rec := postRouting(h, url.Values{
		"ConversationSid":               {"CH1"},
		"MessagingBinding.ProxyAddress": {"+15559990000"},
	})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "CH1", router.conversationSid)
	require.Equal(t, "+15559990000", router.proxyNumber)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "u1", body["worker"])
}

func TestRoutingWebhookSessionFailure(t *testing.T) {
	h := NewHandler(&fakeSessions{err: errors.New("invalid_grant")}, &fakeRouter{}, "", nil, nil)

	rec := postRouting(h, url.Values{"ConversationSid": {"CH1"}})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoutingWebhookRoutingFailure(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeRouter{err: errors.New("conflict")}, "", nil, nil)

	rec := postRouting(h, url.Values{"ConversationSid": {"CH1"}})

	require.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRoutingWebhookRejectsMissingSignature(t *testing.T) {
	h := NewHandler(&fakeSessions{}, &fakeRouter{worker: "u1"}, "token-secret", nil, nil)

	rec := postRouting(h, url.Values{"ConversationSid": {"CH1"}})

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}
