package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestValidate(t *testing.T) {
	base := func() Config {
		c := New()
		c.MainClass = "Hello"
		c.Home = "/fake/java.base.jmod"
		return c
	}

	t.Run("accepts a fully populated config", func(t *testing.T) {
		if err := base().Validate(); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("rejects the wrong version", func(t *testing.T) {
		c := base()
		c.Version = "21.0.1"
		if err := c.Validate(); err == nil {
			t.Error("expected an error for an unsupported version")
		}
	})

	t.Run("rejects a missing main class", func(t *testing.T) {
		c := base()
		c.MainClass = ""
		if err := c.Validate(); err == nil {
			t.Error("expected an error for a missing main class")
		}
	})

	t.Run("rejects a missing jmod path", func(t *testing.T) {
		c := base()
		c.Home = ""
		if err := c.Validate(); err == nil {
			t.Error("expected an error for an unresolved java.base.jmod")
		}
	})

	t.Run("rejects initial heap larger than max heap", func(t *testing.T) {
		c := base()
		c.InitialHeapSize = c.MaxHeapSize + 1
		if err := c.Validate(); err == nil {
			t.Error("expected an error when initial heap exceeds max heap")
		}
	})

	t.Run("rejects a non-positive stack size", func(t *testing.T) {
		c := base()
		c.FrameStackSize = 0
		if err := c.Validate(); err == nil {
			t.Error("expected an error for a zero frame stack size")
		}
	})
}

func TestFindJmodPath(t *testing.T) {
	t.Run("prefers JAVA_BASE_JMOD", func(t *testing.T) {
		t.Setenv("JAVA_BASE_JMOD", "/explicit/java.base.jmod")
		t.Setenv("JAVA_HOME", "/ignored")
		if got := FindJmodPath(); got != "/explicit/java.base.jmod" {
			t.Errorf("got %q, want the explicit override", got)
		}
	})

	t.Run("falls back to JAVA_HOME/jmods", func(t *testing.T) {
		home := t.TempDir()
		jmodsDir := filepath.Join(home, "jmods")
		if err := os.MkdirAll(jmodsDir, 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
		want := filepath.Join(jmodsDir, "java.base.jmod")
		if err := os.WriteFile(want, []byte{}, 0o644); err != nil {
			t.Fatalf("writing fake jmod: %v", err)
		}

		t.Setenv("JAVA_BASE_JMOD", "")
		t.Setenv("JAVA_HOME", home)
		if got := FindJmodPath(); got != want {
			t.Errorf("got %q, want %q", got, want)
		}
	})

	t.Run("returns empty when nothing resolves", func(t *testing.T) {
		t.Setenv("JAVA_BASE_JMOD", "")
		t.Setenv("JAVA_HOME", t.TempDir())
		if got := FindJmodPath(); got != "" {
			t.Errorf("got %q, want empty", got)
		}
	})
}
