package cron

import (
	"context"
	"strings"
	"testing"
)

type namedJob string

func (n namedJob) Name() string            { return string(n) }
func (namedJob) Run(context.Context) error { return nil }

func TestRegistryKeepsWiringOrder(t *testing.T) {
	reg := NewRegistry(namedJob("subscription-batch"), nil, namedJob("outbox-retention"))

	var names []string
	for _, job := range reg.Jobs() {
		names = append(names, job.Name())
	}
	if got := strings.Join(names, ","); got != "subscription-batch,outbox-retention" {
		t.Fatalf("jobs = %s", got)
	}

	snapshot := reg.Jobs()
	snapshot[0] = nil
	if reg.Jobs()[0] == nil {
		t.Fatal("Jobs exposed the backing slice")
	}
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry(namedJob("outbox-retention"))
	if job, ok := reg.Lookup("outbox-retention"); !ok || job.Name() != "outbox-retention" {
		t.Fatalf("lookup = %v, %v", job, ok)
	}
	if _, ok := reg.Lookup("nightly-report"); ok {
		t.Fatal("unknown job resolved")
	}
}

func TestRegistryPanicsOnRepeatedName(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected panic")
		}
	}()
	NewRegistry(namedJob("a"), namedJob("a"))
}
