package lock

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"testing"
)

func TestAcquire_Exclusive(t *testing.T) {
	path := PathFor(t.TempDir())

	first, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}

	if _, err := Acquire(path); !errors.Is(err, ErrLocked) {
		t.Errorf("second Acquire() error = %v, want ErrLocked", err)
	}

	if err := first.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}

	again, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() after release error = %v", err)
	}
	defer again.Release()
}

func TestAcquire_WritesPID(t *testing.T) {
	path := PathFor(t.TempDir())

	l, err := Acquire(path)
	if err != nil {
		t.Fatalf("Acquire() error = %v", err)
	}
	defer l.Release()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(os.Getpid()) {
		t.Errorf("lock file content = %q, want pid %d", got, os.Getpid())
	}
	if l.Path() != path {
		t.Errorf("Path() = %q, want %q", l.Path(), path)
	}
}

func TestAcquire_MissingDirectory(t *testing.T) {
	if _, err := Acquire(PathFor(t.TempDir() + "/missing")); err == nil {
		t.Error("Acquire() in a missing directory succeeded")
	}
}

func TestRelease_Idempotent(t *testing.T) {
	l, err := Acquire(PathFor(t.TempDir()))
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Release(); err != nil {
		t.Fatalf("Release() error = %v", err)
	}
	if err := l.Release(); err != nil {
		t.Errorf("second Release() error = %v", err)
	}

	var nilLock *Lock
	if err := nilLock.Release(); err != nil {
		t.Errorf("nil Release() error = %v", err)
	}
}
