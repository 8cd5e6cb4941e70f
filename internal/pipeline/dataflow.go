package pipeline

import (
	"errors"
	"fmt"
	"slices"

	"github.com/dominikbraun/graph"

	"spriteforge/internal/services"
)

// Slot names one progressively populated field group of JobContext.
type Slot string

// Job context slots.
const (
	SlotUploads      Slot = "uploads"
	SlotStylized     Slot = "stylized"
	SlotTurnaround   Slot = "turnaround"
	SlotFrames       Slot = "frames"
	SlotMasks        Slot = "masks"
	SlotSpriteSheets Slot = "spritesheets"
	SlotManifest     Slot = "manifest"
)

// SlotSet is a set of populated slots.
type SlotSet map[Slot]bool

// EntryVertex is the data-flow graph vertex standing for slots already
// populated when the run starts.
const EntryVertex = "(job)"

// Contract is the slot signature of a stage type.
type Contract struct {
	Requires []Slot
	// Uses are read when present but never required.
	Uses     []Slot
	Produces []Slot
}

var contracts = map[StageType]Contract{
	StageIngest:      {Requires: []Slot{SlotUploads}, Produces: []Slot{SlotUploads}},
	StageStylize:     {Requires: []Slot{SlotUploads}, Produces: []Slot{SlotStylized}},
	StageTurnaround:  {Requires: []Slot{SlotUploads}, Uses: []Slot{SlotStylized}, Produces: []Slot{SlotTurnaround}},
	StageActions:     {Requires: []Slot{SlotTurnaround}, Produces: []Slot{SlotFrames}},
	StageSegment:     {Requires: []Slot{SlotFrames}, Produces: []Slot{SlotMasks}},
	StageSpritesheet: {Requires: []Slot{SlotFrames}, Produces: []Slot{SlotSpriteSheets}},
	StageManifest:    {Requires: []Slot{SlotSpriteSheets}, Produces: []Slot{SlotManifest}},
}

// ContractFor returns the slot signature of t.
func ContractFor(t StageType) (Contract, bool) {
	c, ok := contracts[t]
	return c, ok
}

// BuildDataFlow links every stage to the most recent earlier producer of each
// slot it reads. Slots in present are attributed to EntryVertex. It fails with
// a configuration error naming the first stage whose required input has no
// producer.
func BuildDataFlow(stages []StageSpec, present SlotSet) (graph.Graph[string, string], error) {
	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	if err := g.AddVertex(EntryVertex); err != nil {
		return nil, err
	}

	producer := make(map[Slot]string)
	for slot, ok := range present {
		if ok {
			producer[slot] = EntryVertex
		}
	}

	link := func(from, to string, slot Slot) error {
		err := g.AddEdge(from, to, graph.EdgeData(slot), graph.EdgeAttribute("label", string(slot)))
		if err != nil && !errors.Is(err, graph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("link %s -> %s: %w", from, to, err)
		}
		return nil
	}

	for _, stage := range stages {
		contract, ok := ContractFor(stage.Type)
		if !ok {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan",
				fmt.Sprintf("unknown stage type %q (stage %s)", stage.Type, stage.ID), nil)
		}
		if err := g.AddVertex(stage.ID); err != nil {
			return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan",
				fmt.Sprintf("stage %s", stage.ID), err)
		}
		for _, slot := range contract.Requires {
			from, ok := producer[slot]
			if !ok {
				return nil, services.Wrap(services.ErrConfiguration, "pipeline", "plan",
					fmt.Sprintf("stage %s (%s) needs %s, but no earlier stage produces it%s",
						stage.ID, stage.Type, slot, producerHint(slot)), nil)
			}
			if err := link(from, stage.ID, slot); err != nil {
				return nil, err
			}
		}
		for _, slot := range contract.Uses {
			if from, ok := producer[slot]; ok {
				if err := link(from, stage.ID, slot); err != nil {
					return nil, err
				}
			}
		}
		for _, slot := range contract.Produces {
			producer[slot] = stage.ID
		}
	}
	return g, nil
}

// CheckDataFlow validates stage order against slot contracts.
func CheckDataFlow(stages []StageSpec, present SlotSet) error {
	_, err := BuildDataFlow(stages, present)
	return err
}

// StageOrder returns a stable topological order of the stage ids of cfg,
// assuming uploads exist on entry.
func StageOrder(cfg Config) ([]string, error) {
	g, err := BuildDataFlow(cfg.Stages, SlotSet{SlotUploads: true})
	if err != nil {
		return nil, err
	}
	position := make(map[string]int, len(cfg.Stages)+1)
	position[EntryVertex] = -1
	for i, s := range cfg.Stages {
		position[s.ID] = i
	}
	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		return position[a] < position[b]
	})
	if err != nil {
		return nil, fmt.Errorf("order stages: %w", err)
	}
	return slices.DeleteFunc(order, func(id string) bool { return id == EntryVertex }), nil
}

// Inputs lists, for stageID, the upstream vertex and slot of every data edge.
func Inputs(g graph.Graph[string, string], stageID string) ([]Edge, error) {
	preds, err := g.PredecessorMap()
	if err != nil {
		return nil, err
	}
	var out []Edge
	for from, edge := range preds[stageID] {
		slot, _ := edge.Properties.Data.(Slot)
		out = append(out, Edge{From: from, Slot: slot})
	}
	slices.SortFunc(out, func(a, b Edge) int {
		if a.Slot != b.Slot {
			if a.Slot < b.Slot {
				return -1
			}
			return 1
		}
		if a.From < b.From {
			return -1
		}
		if a.From > b.From {
			return 1
		}
		return 0
	})
	return out, nil
}

// Edge is one data dependency.
type Edge struct {
	From string
	Slot Slot
}

func producerHint(slot Slot) string {
	var types []string
	for _, t := range StageTypes() {
		if slices.Contains(contracts[t].Produces, slot) {
			types = append(types, string(t))
		}
	}
	if len(types) == 0 {
		return ""
	}
	return fmt.Sprintf(" (expected from a stage of type %s)", types[0])
}
