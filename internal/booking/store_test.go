package booking

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/diagnostic-booking/internal/orders"
	"github.com/wolfman30/diagnostic-booking/internal/pincode"
)

func TestRedisStore_SaveGetDelete(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, time.Hour)
	ctx := context.Background()

	sess := &Session{ID: "s-1", Form: orders.Form{Pincode: "400001", Quantity: 2}, PincodeState: pincode.StateValid}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if !mr.Exists("booking_session:s-1") {
		t.Fatal("expected booking_session:s-1 key")
	}
	if ttl := mr.TTL("booking_session:s-1"); ttl != time.Hour {
		t.Fatalf("expected 1h ttl, got %v", ttl)
	}

	got, err := store.Get(ctx, "s-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Form.Quantity != 2 || got.PincodeState != pincode.StateValid {
		t.Fatalf("unexpected session: %+v", got)
	}

	if err := store.Delete(ctx, "s-1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, "s-1"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRedisStore_ExpiredSession(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	store := NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	if err := store.Save(context.Background(), &Session{ID: "s-2"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	mr.FastForward(2 * time.Minute)
	if _, err := store.Get(context.Background(), "s-2"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}

func TestMemoryStore_IsolatesCallers(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()
	sess := &Session{ID: "s-3", Form: orders.Form{Name: "Asha"}}
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("Save: %v", err)
	}
	sess.Form.Name = "changed"

	got, err := store.Get(ctx, "s-3")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Form.Name != "Asha" {
		t.Fatalf("store shared caller memory: %q", got.Form.Name)
	}
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	if err := store.Save(context.Background(), &Session{ID: "s-4"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	now = now.Add(2 * time.Minute)
	if _, err := store.Get(context.Background(), "s-4"); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected expiry, got %v", err)
	}
}
