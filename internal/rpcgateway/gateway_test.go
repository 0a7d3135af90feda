package rpcgateway

import (
	"fmt"
	"testing"

	"github.com/geniustep/bridgecore/internal/upstreampool"
)

func TestEveryEnumeratedOpIsKnown(t *testing.T) {
	ops := []Operation{OpSearch, OpSearchRead, OpRead, OpSearchCount, OpFieldsGet,
		OpNameSearch, OpNameGet, OpCreate, OpWrite, OpUnlink, OpCallKw}
	for _, op := range ops {
		if !IsKnown(op) {
			t.Errorf("expected %q to be a known operation", op)
		}
	}
}

func TestUnknownOpOutsideEnumeratedSetIsRejected(t *testing.T) {
	if IsKnown(Operation("delete_everything")) {
		t.Errorf("expected synthetic op outside the enumerated set to be unknown")
	}
}

func TestSearchCountAndFieldsGetAreReadShaped(t *testing.T) {
	if !IsReadShaped(OpSearchCount) {
		t.Errorf("search_count should be cached like a read")
	}
	if !IsReadShaped(OpFieldsGet) {
		t.Errorf("fields_get should be cached like a read")
	}
}

func TestCallKwIsWriteShaped(t *testing.T) {
	if IsReadShaped(OpCallKw) {
		t.Errorf("call_kw must be treated as write-shaped per spec §9(c)")
	}
}

func TestEmptyIdsOnWriteRejected(t *testing.T) {
	err := validatePayload(OpWrite, Payload{Model: "res.partner"})
	if err == nil || err.Kind != ErrInvalidPayload {
		t.Fatalf("expected InvalidPayload for empty ids on write, got %v", err)
	}
}

func TestEmptyIdsOnUnlinkRejected(t *testing.T) {
	err := validatePayload(OpUnlink, Payload{Model: "res.partner"})
	if err == nil || err.Kind != ErrInvalidPayload {
		t.Fatalf("expected InvalidPayload for empty ids on unlink, got %v", err)
	}
}

func TestMissingModelRejected(t *testing.T) {
	err := validatePayload(OpRead, Payload{})
	if err == nil || err.Kind != ErrInvalidPayload {
		t.Fatalf("expected InvalidPayload for missing model, got %v", err)
	}
}

func TestValidWritePayloadAccepted(t *testing.T) {
	err := validatePayload(OpWrite, Payload{Model: "res.partner", Ids: []int{1, 2}})
	if err != nil {
		t.Fatalf("expected valid payload to pass, got %v", err)
	}
}

func TestUnknownAppTypeDefaultsToMobileApp(t *testing.T) {
	got := ResolveAppProfile("some_made_up_app")
	want := ResolveAppProfile("mobile_app")
	if len(got) != len(want) {
		t.Fatalf("expected unknown app-type to default to mobile_app's all-models profile")
	}
}

func TestSalesAppProfileContainsExpectedModels(t *testing.T) {
	profile := ResolveAppProfile("sales_app")
	for _, model := range []string{"sale.order", "res.partner", "product.product"} {
		if !profile[model] {
			t.Errorf("expected sales_app profile to include %q", model)
		}
	}
}

func TestClassifyGatewayErrorUsesItsOwnKind(t *testing.T) {
	err := &GatewayError{Kind: ErrModelForbidden, Message: "sale.order"}
	if got := classify(err); got != string(ErrModelForbidden) {
		t.Fatalf("classify(%v) = %q, want %q", err, got, ErrModelForbidden)
	}
}

func TestClassifyUpstreamErrorUsesItsOwnKind(t *testing.T) {
	err := &upstreampool.Error{Kind: upstreampool.KindTimeout, Err: fmt.Errorf("deadline exceeded")}
	if got := classify(err); got != string(upstreampool.KindTimeout) {
		t.Fatalf("classify(%v) = %q, want %q", err, got, upstreampool.KindTimeout)
	}
}

func TestClassifyUnrecognizedErrorFallsBackToGenericKind(t *testing.T) {
	err := fmt.Errorf("some unrelated failure")
	if got := classify(err); got != string(upstreampool.KindError) {
		t.Fatalf("classify(%v) = %q, want %q", err, got, upstreampool.KindError)
	}
}
