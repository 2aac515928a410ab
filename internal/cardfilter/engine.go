package cardfilter

import "github.com/starford/rulebook/internal/models"

// Engine holds the filter state of one page load and re-runs the pass on
// every change.
type Engine struct {
	grid  Grid
	opts  Options
	state State
}

// New creates an engine over grid and runs the initial pass.
func New(grid Grid, opts Options) *Engine {
	e := &Engine{
		grid:  grid,
		opts:  opts,
		state: State{Filter: models.FilterAll},
	}
	e.ApplyFilter()
	return e
}

// ApplyFilter runs a pass with the current state.
func (e *Engine) ApplyFilter() Result {
	return Apply(e.grid, e.state, e.opts)
}

// SetSearch replaces the search string and re-runs the pass.
func (e *Engine) SetSearch(search string) Result {
	e.state.Search = search
	return e.ApplyFilter()
}

// SetFilter activates the filter token and re-runs the pass.
func (e *Engine) SetFilter(token string) Result {
	e.state.Filter = NormalizeFilter(token)
	return e.ApplyFilter()
}

// State returns the current filter state.
func (e *Engine) State() State { return e.state }
