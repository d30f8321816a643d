package activitymap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	auth "github.com/goliatone/go-auth-client"
	"github.com/goliatone/go-auth-client/activitymap"
)

func TestNormalizeDefaults(t *testing.T) {
	t.Parallel()

	ts := time.Date(2026, 1, 10, 9, 30, 0, 0, time.UTC)
	event := auth.ActivityEvent{
		EventType: auth.ActivityEventLoginSuccess,
		UserID:    "user-100",
		Role:      auth.RoleSeller,
		Metadata: map[string]any{
			"email": "ana@shop.test",
		},
		OccurredAt: ts,
	}

	out := activitymap.Normalize(event)

	if out.ActorID != "user-100" {
		t.Fatalf("expected actor_id user-100, got %q", out.ActorID)
	}
	if out.Verb != string(auth.ActivityEventLoginSuccess) {
		t.Fatalf("expected verb %q, got %q", auth.ActivityEventLoginSuccess, out.Verb)
	}
	if out.ObjectType != "session" {
		t.Fatalf("expected object_type session, got %q", out.ObjectType)
	}
	if out.ObjectID != "user-100" {
		t.Fatalf("expected object_id user-100, got %q", out.ObjectID)
	}
	if out.Channel != "auth" {
		t.Fatalf("expected channel auth, got %q", out.Channel)
	}
	if !out.OccurredAt.Equal(ts) {
		t.Fatalf("expected occurred_at %v, got %v", ts, out.OccurredAt)
	}

	if out.Metadata["email"] != "ana@shop.test" {
		t.Fatalf("expected metadata email, got %#v", out.Metadata["email"])
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "SELLER" {
		t.Fatalf("expected metadata role SELLER, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}

	if len(event.Metadata) != 1 {
		t.Fatalf("expected source metadata to remain unchanged, got %+v", event.Metadata)
	}
}

func TestNormalizeGuardDenied(t *testing.T) {
	t.Parallel()

	out := activitymap.Normalize(auth.ActivityEvent{
		EventType: auth.ActivityEventGuardDenied,
		Route:     "/dashboard",
		Metadata:  map[string]any{"guard": "auth", "decision": "redirect"},
	})

	if out.ActorID != "anonymous" {
		t.Fatalf("expected anonymous actor, got %q", out.ActorID)
	}
	if out.ObjectType != "route" || out.ObjectID != "/dashboard" {
		t.Fatalf("expected route object /dashboard, got %q %q", out.ObjectType, out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRoute] != "/dashboard" {
		t.Fatalf("expected metadata route, got %#v", out.Metadata[activitymap.MetadataKeyRoute])
	}
	if out.OccurredAt.IsZero() {
		t.Fatalf("expected occurred_at to be set when input is zero")
	}
}

func TestNormalizeOptionOverrides(t *testing.T) {
	t.Parallel()

	event := auth.ActivityEvent{
		EventType: auth.ActivityEventRegisterFailure,
		Role:      auth.RoleClient,
		Metadata: map[string]any{
			"email":                     "ana@shop.test",
			activitymap.MetadataKeyRole: "existing",
		},
	}

	out := activitymap.Normalize(
		event,
		activitymap.WithDefaultChannel("security"),
		activitymap.WithDefaultObjectType("account"),
		activitymap.WithObjectIDResolver(func(e auth.ActivityEvent) string {
			if v, ok := e.Metadata["email"].(string); ok {
				return v
			}
			return ""
		}),
	)

	if out.Channel != "security" {
		t.Fatalf("expected channel security, got %q", out.Channel)
	}
	if out.ObjectType != "account" {
		t.Fatalf("expected object_type account, got %q", out.ObjectType)
	}
	if out.ObjectID != "ana@shop.test" {
		t.Fatalf("expected object_id ana@shop.test, got %q", out.ObjectID)
	}
	if out.Metadata[activitymap.MetadataKeyRole] != "existing" {
		t.Fatalf("expected existing role preserved, got %#v", out.Metadata[activitymap.MetadataKeyRole])
	}
}

func TestNormalizeActorFallbackChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		event  auth.ActivityEvent
		opts   []activitymap.Option
		expect string
	}{
		{
			name:   "uses user id when present",
			event:  auth.ActivityEvent{UserID: "user-2"},
			expect: "user-2",
		},
		{
			name:   "uses default fallback when user missing",
			event:  auth.ActivityEvent{},
			expect: "anonymous",
		},
		{
			name:   "uses configured fallback when user missing",
			event:  auth.ActivityEvent{},
			opts:   []activitymap.Option{activitymap.WithActorFallback("authctl")},
			expect: "authctl",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			out := activitymap.Normalize(tc.event, tc.opts...)
			if out.ActorID != tc.expect {
				t.Fatalf("expected actor_id %q, got %q", tc.expect, out.ActorID)
			}
		})
	}
}

func TestJSONSink(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	sink := activitymap.NewJSONSink(&buf, activitymap.WithDefaultChannel("storefront"))

	var _ auth.ActivitySink = sink
	for _, event := range []auth.ActivityEvent{
		{EventType: auth.ActivityEventLogout, UserID: "user-1"},
		{EventType: auth.ActivityEventSessionPurged},
	} {
		if err := sink.Record(context.Background(), event); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	dec := json.NewDecoder(&buf)
	var records []activitymap.Normalized
	for dec.More() {
		var n activitymap.Normalized
		if err := dec.Decode(&n); err != nil {
			t.Fatalf("decode: %v", err)
		}
		records = append(records, n)
	}

	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Verb != string(auth.ActivityEventLogout) || records[0].Channel != "storefront" {
		t.Fatalf("unexpected first record %+v", records[0])
	}
	if records[1].ActorID != "anonymous" {
		t.Fatalf("expected anonymous actor, got %q", records[1].ActorID)
	}
}
