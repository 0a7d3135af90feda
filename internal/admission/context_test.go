package admission

import (
	"context"
	"testing"

	"github.com/google/uuid"
)

func TestWithContextFromContextRoundTrip(t *testing.T) {
	rc := RequestContext{UserID: uuid.NewString(), Role: "user"}

	ctx := WithContext(context.Background(), rc)

	got, ok := FromContext(ctx)
	if !ok {
		t.Fatal("expected ok = true")
	}
	if got.UserID != rc.UserID || got.Role != rc.Role {
		t.Errorf("got %+v, want %+v", got, rc)
	}
}

func TestFromContext_NotPresent(t *testing.T) {
	_, ok := FromContext(context.Background())
	if ok {
		t.Error("expected ok = false when no RequestContext attached")
	}
}
