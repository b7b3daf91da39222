// Package obslog is the structured-logging collaborator named in
// spec.md §1 ("the structured logger (JSON emitter)"): an Observer that
// turns every lifecycle callback into one zerolog event.
package obslog

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ahogappa/taski"
)

// Observer logs every taski.Observer callback as a structured event.
type Observer struct {
	taski.BaseObserver
	log zerolog.Logger
}

// New returns an Observer that logs through log, tagged with
// component=taski.
func New(log zerolog.Logger) *Observer {
	return &Observer{log: log.With().Str("component", "taski").Logger()}
}

func (o *Observer) OnReady() {
	o.log.Info().Msg("graph ready")
}

func (o *Observer) OnStart() {
	o.log.Info().Msg("worker pool started")
}

func (o *Observer) OnPhaseStarted(phase taski.Phase) {
	o.log.Info().Str("phase", string(phase)).Msg("phase started")
}

func (o *Observer) OnPhaseCompleted(phase taski.Phase) {
	o.log.Info().Str("phase", string(phase)).Msg("phase completed")
}

func (o *Observer) OnTaskUpdated(task string, previous, current taski.State, phase taski.Phase, at time.Time) {
	o.log.Info().
		Str("task", task).
		Str("phase", string(phase)).
		Str("from", string(previous)).
		Str("to", string(current)).
		Time("at", at).
		Msg("task updated")
}

func (o *Observer) OnGroupStarted(task, group string) {
	o.log.Debug().Str("task", task).Str("group", group).Msg("group started")
}

func (o *Observer) OnGroupCompleted(task, group string) {
	o.log.Debug().Str("task", task).Str("group", group).Msg("group completed")
}

func (o *Observer) OnStop() {
	o.log.Info().Msg("worker pool stopped")
}
