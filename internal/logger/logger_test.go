package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"", "local", "dev", "docker", "prod"} {
		l, err := NewLogger(env, "")
		if err != nil {
			t.Fatalf("NewLogger(%q) failed: %v", env, err)
		}
		if l == nil {
			t.Fatalf("NewLogger(%q) returned nil logger", env)
		}
	}
}

func TestNewLogger_UnknownEnvironment(t *testing.T) {
	if _, err := NewLogger("staging-eu", ""); err == nil {
		t.Error("expected error for unknown environment")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(zap.DebugLevel) {
		t.Error("expected debug level to be enabled")
	}

	if _, err := NewLogger("prod", "loud"); err == nil {
		t.Error("expected error for invalid level")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(context.Background()) == nil {
		t.Fatal("expected nop logger for empty context")
	}

	l := zap.NewExample()
	ctx := ContextWithLogger(context.Background(), l)
	if FromContext(ctx) != l {
		t.Error("expected logger stored in context")
	}
}
