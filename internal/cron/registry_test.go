package cron

import (
	"context"
	"errors"
	"testing"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsRegistrationOrder(t *testing.T) {
	jobA := &stubJob{name: "membership-expiry"}
	jobB := &stubJob{name: "payment-reconcile"}
	registry, err := NewRegistry(jobA, jobB)
	if err != nil {
		t.Fatalf("new registry: %v", err)
	}
	jobs := registry.Jobs()
	if len(jobs) != 2 || jobs[0] != jobA || jobs[1] != jobB {
		t.Fatalf("unexpected jobs %v", jobs)
	}
	jobs[0] = nil
	if registry.Jobs()[0] == nil {
		t.Fatal("Jobs exposed the internal slice")
	}
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry(&stubJob{name: "payment-reconcile"}, &stubJob{name: "payment-reconcile"})
	if !errors.Is(err, ErrDuplicateJob) {
		t.Fatalf("expected ErrDuplicateJob, got %v", err)
	}
}

func TestRegistryRejectsInvalidJobs(t *testing.T) {
	var registry Registry
	if err := registry.Register(nil); err == nil {
		t.Fatal("expected error for nil job")
	}
	if err := registry.Register(&stubJob{name: "  "}); err == nil {
		t.Fatal("expected error for blank name")
	}
	if err := registry.Register(&stubJob{name: "outbox-retention"}); err != nil {
		t.Fatalf("zero-value registry should accept jobs: %v", err)
	}
	if names := registry.Names(); len(names) != 1 || names[0] != "outbox-retention" {
		t.Fatalf("unexpected names %v", names)
	}
}
