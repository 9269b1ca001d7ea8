package optimistic_test

import (
	"context"
	"errors"
	"testing"

	"waveline/internal/optimistic"
)

func TestRunKeepsValueOnSuccess(t *testing.T) {
	value := false
	err := optimistic.Run(context.Background(), optimistic.Mutation{
		Apply:  func() { value = true },
		Revert: func() { value = false },
	}, true, func(context.Context) error { return nil })
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if !value {
		t.Fatal("optimistic value should be kept on success")
	}
}

func TestRunRevertsOnFailure(t *testing.T) {
	value := false
	confirmErr := errors.New("rejected")
	err := optimistic.Run(context.Background(), optimistic.Mutation{
		Apply:  func() { value = true },
		Revert: func() { value = false },
	}, true, func(context.Context) error { return confirmErr })
	if !errors.Is(err, confirmErr) {
		t.Fatalf("expected confirm error, got %v", err)
	}
	if value {
		t.Fatal("value should have been reverted")
	}
}

func TestRunKeepsValueWhenRevertDisabled(t *testing.T) {
	value := false
	err := optimistic.Run(context.Background(), optimistic.Mutation{
		Apply:  func() { value = true },
		Revert: func() { value = false },
	}, false, func(context.Context) error { return errors.New("rejected") })
	if err == nil {
		t.Fatal("expected confirm error")
	}
	if !value {
		t.Fatal("value should be kept when revert is disabled")
	}
}
