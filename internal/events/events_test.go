package events

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/accounthub/apiserver/internal/mq"
	"github.com/accounthub/apiserver/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	args := m.Called(ctx, channel, data, attrs)
	return args.String(0), args.Error(1)
}

func (m *MockBackend) Subscribe(ctx context.Context, channel string, handler mq.Handler) error {
	args := m.Called(ctx, channel, handler)
	return args.Error(0)
}

func (m *MockBackend) Close() error {
	return m.Called().Error(0)
}

func TestPublisher_Publish(t *testing.T) {
	backend := new(MockBackend)
	publisher := NewPublisher(mq.New(backend), "account.events", nil)

	user := types.User{ID: primitive.NewObjectID(), Email: "alice@example.com", Password: "secret-hash"}

	backend.On("Publish", mock.Anything, "account.events", mock.MatchedBy(func(data []byte) bool {
		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			return false
		}
		return event.Type == AccountCreated &&
			event.UserID == user.ID.Hex() &&
			event.Email == "alice@example.com" &&
			!bytes.Contains(data, []byte("secret-hash"))
	}), map[string]string{"event_type": AccountCreated, "ordering_key": user.ID.Hex()}).
		Return("msg-1", nil).
		Once()

	publisher.Publish(context.Background(), New(AccountCreated, user))
	backend.AssertExpectations(t)
}

func TestPublisher_PublishFailureIsSwallowed(t *testing.T) {
	backend := new(MockBackend)
	publisher := NewPublisher(mq.New(backend), "account.events", nil)

	backend.On("Publish", mock.Anything, "account.events", mock.Anything, mock.Anything).
		Return("", errors.New("broker down")).
		Once()

	assert.NotPanics(t, func() {
		publisher.Publish(context.Background(), New(PasswordChanged, types.User{ID: primitive.NewObjectID()}))
	})
	backend.AssertExpectations(t)
}

func TestPublisher_Consume(t *testing.T) {
	backend := new(MockBackend)
	publisher := NewPublisher(mq.New(backend), "account.events", nil)

	payload, err := json.Marshal(Event{Type: ProfileUpdated, UserID: "u1"})
	require.NoError(t, err)

	backend.On("Subscribe", mock.Anything, "account.events", mock.Anything).
		Run(func(args mock.Arguments) {
			handler := args.Get(2).(mq.Handler)
			require.NoError(t, handler(context.Background(), mq.Message{ID: "1", Data: payload}))
			require.NoError(t, handler(context.Background(), mq.Message{ID: "2", Data: []byte("{broken")}))
			require.Error(t, handler(context.Background(), mq.Message{ID: "3", Data: payload}))
		}).
		Return(nil).
		Once()

	var seen []Event
	err = publisher.Consume(context.Background(), func(_ context.Context, event Event) error {
		seen = append(seen, event)
		if len(seen) > 1 {
			return errors.New("retry later")
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, seen, 2)
	assert.Equal(t, ProfileUpdated, seen[0].Type)
	assert.Equal(t, "u1", seen[0].UserID)
	backend.AssertExpectations(t)
}
