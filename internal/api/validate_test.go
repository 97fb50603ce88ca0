package api

import (
	"context"
	"errors"
	"testing"

	"github.com/shaiso/autopkg/internal/domain"
	"github.com/shaiso/autopkg/internal/processors"
	"github.com/shaiso/autopkg/internal/repo"
)

type fakeBoundaries struct {
	known map[string]bool
}

func (f *fakeBoundaries) GetByName(_ context.Context, name string) (*domain.Boundary, error) {
	if !f.known[name] {
		return nil, repo.ErrNotFound
	}
	return &domain.Boundary{Name: name}, nil
}

func newTestValidator(t *testing.T) *Validator {
	t.Helper()
	registry := processors.NewRegistry()
	meta := processors.Metadata{Dataset: "elevation", Version: "version_1"}
	if err := registry.Register(meta, nil); err != nil {
		t.Fatalf("register: %v", err)
	}
	return NewValidator(&fakeBoundaries{known: map[string]bool{"fort-portal": true}}, registry)
}

func TestValidateSubmission(t *testing.T) {
	v := newTestValidator(t)
	ctx := context.Background()

	if err := v.ValidateSubmission(ctx, "fort-portal", []string{"elevation.version_1"}); err != nil {
		t.Errorf("valid submission rejected: %v", err)
	}

	// Пустая группа допустима
	if err := v.ValidateSubmission(ctx, "fort-portal", nil); err != nil {
		t.Errorf("empty group rejected: %v", err)
	}
}

func TestValidateSubmissionUnknownBoundary(t *testing.T) {
	v := newTestValidator(t)

	err := v.ValidateSubmission(context.Background(), "atlantis", []string{"elevation.version_1"})
	if !errors.Is(err, ErrBoundaryUnknown) {
		t.Errorf("err = %v, want ErrBoundaryUnknown", err)
	}

	err = v.ValidateSubmission(context.Background(), "", nil)
	if !errors.Is(err, ErrBoundaryUnknown) {
		t.Errorf("empty name err = %v, want ErrBoundaryUnknown", err)
	}
}

func TestValidateSubmissionUnknownProcessor(t *testing.T) {
	v := newTestValidator(t)

	err := v.ValidateSubmission(context.Background(), "fort-portal", []string{"landcover.version_9"})
	if !errors.Is(err, ErrProcessorUnknown) {
		t.Errorf("err = %v, want ErrProcessorUnknown", err)
	}
}

func TestValidateSubmissionDuplicateProcessor(t *testing.T) {
	v := newTestValidator(t)

	err := v.ValidateSubmission(context.Background(), "fort-portal",
		[]string{"elevation.version_1", "elevation.version_1"})
	if !errors.Is(err, ErrProcessorDuplicate) {
		t.Errorf("err = %v, want ErrProcessorDuplicate", err)
	}
}
