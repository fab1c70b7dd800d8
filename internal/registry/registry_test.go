package registry

import (
	"bytes"
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/medieye/med-reminder/internal/domain"
)

var testPush = domain.PushDescriptor(`{"endpoint":"https://push.example.com/abc","keys":{"p256dh":"k","auth":"a"}}`)

func TestAdd_AppendsExactlyOne(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	r := NewMemoryRegistry(clock)
	ctx := context.Background()

	before := len(r.All(ctx))
	sub, err := r.Add(ctx, testPush, "a@b.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := r.All(ctx)
	if len(all) != before+1 {
		t.Fatalf("expected %d entries, got %d", before+1, len(all))
	}
	last := all[len(all)-1]
	if last.Email != "a@b.com" {
		t.Errorf("expected email a@b.com, got %q", last.Email)
	}
	if !bytes.Equal(last.Push, testPush) {
		t.Errorf("push descriptor changed: %s", last.Push)
	}
	if last.ID == "" || last.ID != sub.ID {
		t.Errorf("expected stored id %q, got %q", sub.ID, last.ID)
	}
	if !last.CreatedAt.Equal(clock.Now()) {
		t.Errorf("expected created_at from clock, got %v", last.CreatedAt)
	}
}

func TestAdd_StoresSubmittedEmailUnchanged(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ctx := context.Background()

	for _, email := range []string{" a@b.com ", " "} {
		if _, err := r.Add(ctx, testPush, email); err != nil {
			t.Fatalf("Add(%q): %v", email, err)
		}
	}

	all := r.All(ctx)
	if all[0].Email != " a@b.com " || all[1].Email != " " {
		t.Errorf("emails should be stored as submitted, got %q and %q", all[0].Email, all[1].Email)
	}
}

func TestAdd_RejectsEmptyInput(t *testing.T) {
	tests := []struct {
		name  string
		push  domain.PushDescriptor
		email string
	}{
		{"missing push", nil, "a@b.com"},
		{"null push", domain.PushDescriptor(`null`), "a@b.com"},
		{"empty object", domain.PushDescriptor(`{}`), "a@b.com"},
		{"empty string push", domain.PushDescriptor(`""`), "a@b.com"},
		{"missing email", testPush, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewMemoryRegistry(nil)
			_, err := r.Add(context.Background(), tt.push, tt.email)

			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if r.Len() != 0 {
				t.Errorf("registry should be unchanged, has %d entries", r.Len())
			}
		})
	}
}

func TestAdd_AllowsDuplicates(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := r.Add(ctx, testPush, "a@b.com"); err != nil {
			t.Fatal(err)
		}
	}
	if r.Len() != 2 {
		t.Errorf("expected 2 entries for duplicate subscribe, got %d", r.Len())
	}
}

func TestAll_StableWithoutAdd(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ctx := context.Background()
	r.Add(ctx, testPush, "a@b.com")
	r.Add(ctx, testPush, "c@d.com")

	first := r.All(ctx)
	second := r.All(ctx)
	if !reflect.DeepEqual(first, second) {
		t.Error("two snapshots without Add should be equal")
	}
	if first[0].Email != "a@b.com" || first[1].Email != "c@d.com" {
		t.Error("snapshot should keep insertion order")
	}
}

func TestAll_SnapshotIsACopy(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ctx := context.Background()
	r.Add(ctx, testPush, "a@b.com")

	snap := r.All(ctx)
	snap[0].Email = "mutated@x.com"

	if got := r.All(ctx)[0].Email; got != "a@b.com" {
		t.Errorf("registry mutated through snapshot: %q", got)
	}
}

func TestConcurrentAddAndSnapshot(t *testing.T) {
	r := NewMemoryRegistry(nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Add(ctx, testPush, "a@b.com")
		}()
		go func() {
			defer wg.Done()
			_ = r.All(ctx)
		}()
	}
	wg.Wait()

	if r.Len() != 50 {
		t.Errorf("expected 50 entries, got %d", r.Len())
	}
}
