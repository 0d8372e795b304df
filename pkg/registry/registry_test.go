package registry

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestRegisterAndGet(t *testing.T) {
	r := New[int]("model")
	if err := r.Register(" Mini_GPT4 ", 4); err != nil {
		t.Fatalf("Register: %v", err)
	}

	got, err := r.Get("mini_gpt4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != 4 {
		t.Fatalf("expected 4, got %d", got)
	}
}

func TestRegisterRejectsDuplicateAndEmpty(t *testing.T) {
	r := New[string]("processor")
	r.MustRegister("identity", "a")

	if err := r.Register("IDENTITY", "b"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
	if err := r.Register("  ", "c"); err == nil {
		t.Fatal("expected error for empty name")
	}
}

func TestMustRegisterPanicsOnDuplicate(t *testing.T) {
	r := New[int]("model")
	r.MustRegister("echo", 1)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	r.MustRegister("echo", 2)
}

func TestGetUnknownListsKnownNames(t *testing.T) {
	r := New[int]("model")
	r.MustRegister("echo", 1)
	r.MustRegister("claude_digest", 2)

	_, err := r.Get("blip2")
	if !errors.Is(err, ErrUnknown) {
		t.Fatalf("expected ErrUnknown, got %v", err)
	}
	if !strings.Contains(err.Error(), "claude_digest, echo") {
		t.Fatalf("expected known names in error, got %v", err)
	}
	if !reflect.DeepEqual(r.Names(), []string{"claude_digest", "echo"}) {
		t.Fatalf("unexpected names: %v", r.Names())
	}
}
