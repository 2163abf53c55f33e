package annotator

import "context"

// WorkflowAPI is the transition policy collaborator. The client holds no copy
// of the transition table; legality is decided server-side.
type WorkflowAPI interface {
	GetWorkflowTransitions(ctx context.Context, assetID string) (WorkflowState, error)
	ApplyWorkflowTransition(ctx context.Context, assetID, action string) error
}

// WorkflowController orchestrates workflow actions for one asset view. It
// refetches the legal action list on demand rather than caching it, since
// legality can depend on viewer identity and change between views.
type WorkflowController struct {
	api WorkflowAPI

	state    WorkflowState
	fetched  bool
	applying bool

	// OnApplied fires after a successful transition so dependent views
	// (status badges, asset lists) refresh their state.
	OnApplied func()
}

// NewWorkflowController builds a controller over the policy collaborator.
func NewWorkflowController(api WorkflowAPI) *WorkflowController {
	return &WorkflowController{api: api}
}

// Fetch retrieves the current state and its legal transitions. Always a
// fresh fetch; called whenever the action menu is about to be presented.
func (c *WorkflowController) Fetch(ctx context.Context, assetID string) (WorkflowState, error) {
	state, err := c.api.GetWorkflowTransitions(ctx, assetID)
	if err != nil {
		return WorkflowState{}, err
	}
	c.state = state
	c.fetched = true
	return state, nil
}

// State returns the last fetched snapshot. ok is false before the first
// successful fetch.
func (c *WorkflowController) State() (WorkflowState, bool) {
	return c.state, c.fetched
}

// Applying reports whether a transition is outstanding.
func (c *WorkflowController) Applying() bool { return c.applying }

// Apply invokes the chosen action. On failure the local snapshot is left
// untouched and the error surfaces to the caller; the controller never
// guesses the new state. On success the snapshot is invalidated so the next
// presentation refetches, and OnApplied signals dependent views.
func (c *WorkflowController) Apply(ctx context.Context, assetID, action string) error {
	if c.applying {
		return ErrApplyInFlight
	}
	c.applying = true
	err := c.api.ApplyWorkflowTransition(ctx, assetID, action)
	c.applying = false
	if err != nil {
		return err
	}
	c.fetched = false
	c.state = WorkflowState{}
	if c.OnApplied != nil {
		c.OnApplied()
	}
	return nil
}
