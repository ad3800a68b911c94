package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rubintree/loom/executor"
)

// fixture is the recorded observable segment replay and counterfactual
// mode rerun: the role bindings a case was admitted with, plus the
// external events it received in delivery order. Replay uses no wall
// clocks, so every timer event a recorded run saw must appear here
// rather than being redrawn from the system clock.
type fixture struct {
	Roles  map[string]string `json:"roles"`
	Events []fixtureEvent    `json:"events"`
}

type fixtureEvent struct {
	Kind      string `json:"kind"`
	NodeIndex uint32 `json:"node_index"`
	Count     uint32 `json:"count"`
	AfterStep int    `json:"after_step"`
}

var fixtureEventKinds = map[string]executor.EventKind{
	"deferred_choice_trigger": executor.EventDeferredChoiceTrigger,
	"mi_discovery_result":     executor.EventMIDiscoveryResult,
	"human_task_complete":     executor.EventHumanTaskComplete,
	"timer_fired":             executor.EventTimerFired,
}

func loadFixture(path string) (fixture, error) {
	var f fixture
	raw, err := os.ReadFile(path)
	if err != nil {
		return f, err
	}
	if err := json.Unmarshal(raw, &f); err != nil {
		return f, err
	}
	return f, nil
}

// injectDue delivers every fixture event scheduled for step index i.
func injectDue(c *executor.Case, f fixture, step int) error {
	for _, fe := range f.Events {
		if fe.AfterStep != step {
			continue
		}
		kind, ok := fixtureEventKinds[fe.Kind]
		if !ok {
			return fmt.Errorf("fixture: unknown event kind %q", fe.Kind)
		}
		if err := executor.InjectEvent(c, executor.Event{Kind: kind, NodeIndex: fe.NodeIndex, Count: fe.Count}); err != nil {
			return err
		}
	}
	return nil
}
