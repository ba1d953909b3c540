package routing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wolfman30/frontline-crm-sync/internal/conversations"
	"github.com/wolfman30/frontline-crm-sync/internal/salesforce"
)

type fakeOwnerResolver struct {
	identity string
	err      error
	numbers  []string
}

func (f *fakeOwnerResolver) FindOwnerByNumber(ctx context.Context, sess *salesforce.Session, number string) (string, error) {
	f.numbers = append(f.numbers, number)
	return f.identity, f.err
}

type addCall struct {
	conversationSid string
	identity        string
}

type fakeAdder struct {
	err  error
	adds []addCall
}

func (f *fakeAdder) AddParticipant(ctx context.Context, conversationSid, identity string) (*conversations.Participant, error) {
	f.adds = append(f.adds, addCall{conversationSid, identity})
	if f.err != nil {
		return nil, f.err
	}
	return &conversations.Participant{Sid: "MB9", Identity: identity}, nil
}

func testSess() *salesforce.Session {
	return &salesforce.Session{InstanceURL: "https://example.my.salesforce.com", AccessToken: "t", Username: "svc@example.com"}
}

func TestRouteConversationMatchedOwner(t *testing.T) {
	resolver := &fakeOwnerResolver{identity: "u1"}
	adder := &fakeAdder{}
	router := NewRouter(resolver, adder, "default@example.com", nil, nil)

	worker, err := router.RouteConversation(context.Background(), testSess(), "CH1", "+15559990000")
	require.NoError(t, err)
	require.Equal(t, "u1", worker)
	require.Equal(t, []string{"+15559990000"}, resolver.numbers)
	require.Equal(t, []addCall{{"CH1", "u1"}}, adder.adds)
}

func TestRouteConversationFallsBackToDefaultWorker(t *testing.T) {
	adder := &fakeAdder{}
	router := NewRouter(&fakeOwnerResolver{}, adder, "default@example.com", nil, nil)

	worker, err := router.RouteConversation(context.Background(), testSess(), "CH1", "+15550000000")
	require.NoError(t, err)
	require.Equal(t, "default@example.com", worker)
	require.Equal(t, []addCall{{"CH1", "default@example.com"}}, adder.adds)
}

func TestRouteConversationLookupErrorDegradesToDefault(t *testing.T) {
	resolver := &fakeOwnerResolver{err: errors.New("backend down")}
	adder := &fakeAdder{}
	router := NewRouter(resolver, adder, "default@example.com", nil, nil)

	worker, err := router.RouteConversation(context.Background(), testSess(), "CH1", "+15559990000")
	require.NoError(t, err)
	require.Equal(t, "default@example.com", worker)
}

func TestRouteConversationNoDefaultConfigured(t *testing.T) {
	adder := &fakeAdder{}
	router := NewRouter(&fakeOwnerResolver{}, adder, "", nil, nil)

	_, err := router.RouteConversation(context.Background(), testSess(), "CH1", "+15550000000")
	require.Error(t, err)
	require.Empty(t, adder.adds)
}

func TestRouteConversationSurfacesPlatformError(t *testing.T) {
	adder := &fakeAdder{err: errors.New("conflict")}
	router := NewRouter(&fakeOwnerResolver{identity: "u1"}, adder, "default@example.com", nil, nil)

	worker, err := router.RouteConversation(context.Background(), testSess(), "CH1", "+15559990000")
	require.Error(t, err)
	require.Equal(t, "u1", worker)
	// One attempt only, no retry.
	require.Len(t, adder.adds, 1)
}
