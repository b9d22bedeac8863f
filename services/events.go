package services

import "github.com/Dosada05/chess-arena/models"

// MatchEventSink receives the events raised by MatchService.
type MatchEventSink interface {
	PublishMatchChanged(evt models.MatchChanged)
	PublishMatchCompleted(evt models.MatchCompleted)
}

// Broadcaster fans events out to observers. brackets.Hub implements it.
type Broadcaster interface {
	PublishMatchChanged(evt models.MatchChanged)
	PublishTournamentChanged(evt models.TournamentChanged)
}

type nopBroadcaster struct{}

func (nopBroadcaster) PublishMatchChanged(models.MatchChanged)           {}
func (nopBroadcaster) PublishTournamentChanged(models.TournamentChanged) {}
