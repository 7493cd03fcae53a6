package schedule

import (
	"testing"

	"github.com/brightloom/ecsmesh/internal/component"
	"github.com/brightloom/ecsmesh/internal/query"
)

var (
	posID = component.HashName("Position")
	velID = component.HashName("Velocity")
	aiID  = component.HashName("AiState")
)

func TestBuildPlanIndependentSystemsShareOneStage(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	r.Register("render", query.Descriptor{Reads: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "r1"})
	r.Register("ai", query.Descriptor{Reads: []component.TypeID{aiID}}, nil, nil, Instance{InstanceID: "a1"})

	plan, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 1 {
		t.Fatalf("expected 1 stage for non-conflicting systems, got %d", len(plan.Stages))
	}
	if len(plan.Stages[0].Systems) != 2 {
		t.Fatalf("expected both systems in the single stage, got %+v", plan.Stages[0].Systems)
	}
}

func TestBuildPlanConflictingWritersSplitStages(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	r.Register("mover", query.Descriptor{Writes: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "m1"})
	r.Register("renderer", query.Descriptor{Reads: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "r1"})

	plan, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 2 {
		t.Fatalf("expected 2 stages for conflicting read/write, got %d: %+v", len(plan.Stages), plan.Stages)
	}
}

func TestBuildPlanOrderAfterPushesLaterStage(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	r.Register("physics", query.Descriptor{Reads: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "p1"})
	r.Register("render", query.Descriptor{Reads: []component.TypeID{posID}}, []string{"physics"}, nil, Instance{InstanceID: "r1"})

	plan, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	stageOf := make(map[string]int)
	for i, st := range plan.Stages {
		for _, name := range st.Systems {
			stageOf[name] = i
		}
	}
	if stageOf["render"] <= stageOf["physics"] {
		t.Fatalf("expected render after physics, got physics=%d render=%d", stageOf["physics"], stageOf["render"])
	}
}

func TestBuildPlanOrderCycleIsInfeasible(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	r.Register("a", query.Descriptor{Reads: []component.TypeID{posID}}, []string{"b"}, nil, Instance{InstanceID: "a1"})
	r.Register("b", query.Descriptor{Reads: []component.TypeID{velID}}, []string{"a"}, nil, Instance{InstanceID: "b1"})

	_, err := BuildPlan(r, components)
	if err == nil {
		t.Fatal("expected an error for a cyclic ordering constraint")
	}
}

func TestBuildPlanDeterministicAcrossRuns(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	r.Register("zeta", query.Descriptor{Writes: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "z1"})
	r.Register("alpha", query.Descriptor{Reads: []component.TypeID{posID}}, nil, nil, Instance{InstanceID: "a1"})
	r.Register("beta", query.Descriptor{Reads: []component.TypeID{velID}}, nil, nil, Instance{InstanceID: "b1"})

	first, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Stages) != len(second.Stages) {
		t.Fatalf("expected identical stage counts across repeated runs, got %d and %d", len(first.Stages), len(second.Stages))
	}
	for i := range first.Stages {
		if len(first.Stages[i].Systems) != len(second.Stages[i].Systems) {
			t.Fatalf("stage %d differs across runs: %+v vs %+v", i, first.Stages[i], second.Stages[i])
		}
		for j, name := range first.Stages[i].Systems {
			if second.Stages[i].Systems[j] != name {
				t.Fatalf("stage %d order differs across runs: %+v vs %+v", i, first.Stages[i].Systems, second.Stages[i].Systems)
			}
		}
	}
}

func TestBuildPlanEmptyRegistry(t *testing.T) {
	r := NewRegistry()
	components := component.NewRegistry()
	plan, err := BuildPlan(r, components)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Stages) != 0 {
		t.Fatalf("expected no stages for an empty registry, got %+v", plan.Stages)
	}
}
