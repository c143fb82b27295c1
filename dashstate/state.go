// Package dashstate is the client-side dashboard state: the received time
// series plus UI flags, changed only by dispatching actions.
package dashstate

import (
	"github.com/livedash/livedash/dashsdk"
)

type State struct {
	// Timeseries is every record received, in arrival order. It is never
	// trimmed or deduplicated.
	Timeseries       []dashsdk.MetricsRecord
	IsLoadingMetrics bool
	NavOpen          bool
}

// InitialState is loading with no data.
func InitialState() State {
	return State{IsLoadingMetrics: true}
}

// Action is one of AddMetrics, SetLoadingState or ToggleNav.
type Action interface {
	isAction()
}

// AddMetrics appends a batch. The initial snapshot and every streamed record
// go through this action.
type AddMetrics struct {
	Batch []dashsdk.MetricsRecord
}

type SetLoadingState struct {
	IsLoading bool
}

type ToggleNav struct{}

func (AddMetrics) isAction()      {}
func (SetLoadingState) isAction() {}
func (ToggleNav) isAction()       {}

// Reduce returns the state after applying action. It never modifies s.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case AddMetrics:
		timeseries := make([]dashsdk.MetricsRecord, 0, len(s.Timeseries)+len(a.Batch))
		timeseries = append(timeseries, s.Timeseries...)
		timeseries = append(timeseries, a.Batch...)
		s.Timeseries = timeseries
	case SetLoadingState:
		s.IsLoadingMetrics = a.IsLoading
	case ToggleNav:
		s.NavOpen = !s.NavOpen
	}
	return s
}
