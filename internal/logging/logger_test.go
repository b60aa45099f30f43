package logging

import "testing"

func TestNewDevelopmentLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(true)
	if err != nil {
		t.Fatalf("New(true) error = %v", err)
	}
	if logger == nil {
		t.Fatal("expected logger to be non-nil")
	}
	defer Sync(logger)
	if !logger.Core().Enabled(-1) {
		t.Fatal("development logger should enable debug")
	}
	logger.Info("development logger ready")
}

func TestNewProductionLogger(t *testing.T) {
	t.Parallel()

	logger, err := New(false)
	if err != nil {
		t.Fatalf("New(false) error = %v", err)
	}
	defer Sync(logger)
	if logger.Core().Enabled(-1) {
		t.Fatal("production logger should not enable debug")
	}
	logger.Info("production logger ready")
}

func TestSyncNil(t *testing.T) {
	t.Parallel()
	Sync(nil)
}
