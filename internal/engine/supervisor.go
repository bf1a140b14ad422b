package engine

import (
	"fmt"

	"github.com/sanjaynair/amlscope/internal/model"
)

// supervisorState tracks where the dispatch loop is.
type supervisorState string

const (
	stateIdle          supervisorState = "idle"
	stateDispatching   supervisorState = "dispatching"
	stateAwaitingStage supervisorState = "awaiting_stage"
	stateCompleting    supervisorState = "completing"
	stateDone          supervisorState = "done"
)

var supervisorTransitions = map[supervisorState]map[supervisorState]struct{}{
	stateIdle:          {stateDispatching: {}},
	stateDispatching:   {stateAwaitingStage: {}, stateCompleting: {}},
	stateAwaitingStage: {stateDispatching: {}, stateDone: {}},
	stateCompleting:    {stateDone: {}},
	stateDone:          {},
}

// Supervisor decides the next stage to dispatch based on which stages have
// already recorded completion. Stage order is a strict total order: later
// stages' prompts read earlier stages' recorded output.
type Supervisor struct {
	state supervisorState
}

// NewSupervisor returns an idle supervisor.
func NewSupervisor() *Supervisor {
	return &Supervisor{state: stateIdle}
}

// Next returns the first pipeline stage not yet completed, or done=true
// when all four are present.
func (s *Supervisor) Next(completed map[model.Stage]struct{}) (stage model.Stage, done bool, err error) {
	if err := s.to(stateDispatching); err != nil {
		return "", false, err
	}
	for _, candidate := range model.Pipeline() {
		if _, ok := completed[candidate]; !ok {
			if err := s.to(stateAwaitingStage); err != nil {
				return "", false, err
			}
			return candidate, false, nil
		}
	}
	if err := s.to(stateCompleting); err != nil {
		return "", false, err
	}
	return "", true, nil
}

// Finish moves the supervisor to its terminal state once completion work
// (report synthesis) is done, or directly from awaiting on stage failure.
func (s *Supervisor) Finish() error {
	return s.to(stateDone)
}

func (s *Supervisor) to(next supervisorState) error {
	if _, ok := supervisorTransitions[s.state][next]; !ok {
		return fmt.Errorf("invalid supervisor transition: %s -> %s", s.state, next)
	}
	s.state = next
	return nil
}
