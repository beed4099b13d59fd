package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActorRoundTrip(t *testing.T) {
	ctx := WithActor(context.Background(), &Actor{ActorID: "pharmacist-7", TenantID: "t1", Roles: []string{"pharmacist"}})

	assert.Equal(t, "pharmacist-7", GetActorID(ctx))
	assert.True(t, HasRole(ctx, "pharmacist"))
	assert.False(t, HasRole(ctx, "admin"))
}

func TestMissingValues(t *testing.T) {
	ctx := context.Background()

	assert.Nil(t, GetActor(ctx))
	assert.Equal(t, "", GetActorID(ctx))
	assert.Equal(t, "", GetRequestID(ctx))
}

func TestBackgroundTrace(t *testing.T) {
	tc := NewBackgroundTrace(OriginWorker)
	ctx := WithTrace(context.Background(), tc)

	assert.NotEmpty(t, tc.TraceID)
	assert.Equal(t, OriginWorker, GetTrace(ctx).Origin)
	assert.Equal(t, tc.RequestID, GetRequestID(ctx))
	assert.Equal(t, tc.TraceID, TraceID(ctx))
	assert.Equal(t, "", TraceID(context.Background()))
}
