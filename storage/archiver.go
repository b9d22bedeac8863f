package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/Dosada05/chess-arena/models"
	"github.com/Dosada05/chess-arena/rules"
	"golang.org/x/sync/errgroup"
)

const (
	contentTypePGN  = "application/vnd.chess-pgn"
	contentTypeJSON = "application/json"

	archiveUploadConcurrency = 4
)

// Archiver stores finished games and brackets outside the database.
type Archiver interface {
	ArchiveMatch(ctx context.Context, match *models.Match) error
	ArchiveTournament(ctx context.Context, tournament *models.Tournament, matches []models.Match) error
	RemoveMatch(ctx context.Context, matchID int) error
}

func MatchArchiveKey(matchID int) string {
	return fmt.Sprintf("matches/%d.pgn", matchID)
}

func TournamentBracketKey(tournamentID int) string {
	return fmt.Sprintf("tournaments/%d/bracket.json", tournamentID)
}

func TournamentMatchKey(tournamentID, matchID int) string {
	return fmt.Sprintf("tournaments/%d/matches/%d.pgn", tournamentID, matchID)
}

type uploaderArchiver struct {
	uploader FileUploader
	logger   *slog.Logger
}

func NewArchiver(uploader FileUploader, logger *slog.Logger) Archiver {
	if uploader == nil {
		return NopArchiver{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &uploaderArchiver{uploader: uploader, logger: logger}
}

func (a *uploaderArchiver) ArchiveMatch(ctx context.Context, match *models.Match) error {
	result, err := a.uploadPGN(ctx, MatchArchiveKey(match.ID), match)
	if err != nil {
		return err
	}
	a.logger.Info("match archived", slog.Int("match_id", match.ID), slog.String("location", result.Location))
	return nil
}

// RemoveMatch drops the PGN of a deleted free match.
func (a *uploaderArchiver) RemoveMatch(ctx context.Context, matchID int) error {
	if err := a.uploader.Delete(ctx, MatchArchiveKey(matchID)); err != nil {
		return fmt.Errorf("failed to remove archive of match %d: %w", matchID, err)
	}
	return nil
}

// ArchiveTournament uploads the bracket and every match PGN; the first
// failure cancels the remaining uploads.
func (a *uploaderArchiver) ArchiveTournament(ctx context.Context, tournament *models.Tournament, matches []models.Match) error {
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(archiveUploadConcurrency)

	g.Go(func() error {
		data, err := json.Marshal(tournament.Bracket)
		if err != nil {
			return fmt.Errorf("failed to encode bracket of tournament %d: %w", tournament.ID, err)
		}
		key := TournamentBracketKey(tournament.ID)
		if _, err := a.uploader.Upload(gCtx, key, contentTypeJSON, bytes.NewReader(data)); err != nil {
			return err
		}
		return nil
	})

	for i := range matches {
		match := &matches[i]
		g.Go(func() error {
			_, err := a.uploadPGN(gCtx, TournamentMatchKey(tournament.ID, match.ID), match)
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("failed to archive tournament %d: %w", tournament.ID, err)
	}
	a.logger.Info("tournament archived", slog.Int("tournament_id", tournament.ID), slog.Int("matches", len(matches)))
	return nil
}

func (a *uploaderArchiver) uploadPGN(ctx context.Context, key string, match *models.Match) (*UploadResult, error) {
	pgn, err := rules.PGN(match)
	if err != nil {
		return nil, fmt.Errorf("failed to render pgn for match %d: %w", match.ID, err)
	}
	return a.uploader.Upload(ctx, key, contentTypePGN, bytes.NewBufferString(pgn))
}

// NopArchiver is used when no bucket is configured.
type NopArchiver struct{}

func (NopArchiver) ArchiveMatch(context.Context, *models.Match) error { return nil }

func (NopArchiver) ArchiveTournament(context.Context, *models.Tournament, []models.Match) error {
	return nil
}

func (NopArchiver) RemoveMatch(context.Context, int) error { return nil }
