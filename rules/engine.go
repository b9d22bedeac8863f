// Package rules adapts github.com/notnil/chess to the narrow interface the
// match service needs: apply one move to a FEN position.
package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/Dosada05/chess-arena/models"
	"github.com/notnil/chess"
)

var (
	ErrIllegalMove     = errors.New("illegal move")
	ErrInvalidPosition = errors.New("invalid position")
)

// SAN-декодер принимает "g1f3" как пешечный ход, поэтому UCI проверяется первым.
var uciMove = regexp.MustCompile(`^[a-h][1-8][a-h][1-8][qrbn]?$`)

// Outcome is the result of applying a legal move.
type Outcome struct {
	// Move is the applied move in standard algebraic notation.
	Move        string
	Position    string
	SideToMove  models.Color
	IsCheckmate bool
	IsDraw      bool
}

type Engine interface {
	ApplyMove(position, moveText string) (Outcome, error)
	SideToMove(position string) (models.Color, error)
}

type chessEngine struct{}

func NewEngine() Engine {
	return chessEngine{}
}

func (chessEngine) SideToMove(position string) (models.Color, error) {
	fen, err := chess.FEN(position)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPosition, err)
	}
	return colorOf(chess.NewGame(fen).Position().Turn()), nil
}

// ApplyMove accepts UCI long algebraic ("g1f3") and standard algebraic
// notation ("Nf3"). Any engine failure is reported as ErrIllegalMove.
func (chessEngine) ApplyMove(position, moveText string) (Outcome, error) {
	moveText = strings.TrimSpace(moveText)
	if moveText == "" {
		return Outcome{}, fmt.Errorf("%w: empty move", ErrIllegalMove)
	}

	fen, err := chess.FEN(position)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrIllegalMove, err)
	}

	game := chess.NewGame(fen)
	before := game.Position()
	move, err := decodeMove(before, moveText)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %q: %v", ErrIllegalMove, moveText, err)
	}
	if err := game.Move(move); err != nil {
		return Outcome{}, fmt.Errorf("%w: %q: %v", ErrIllegalMove, moveText, err)
	}
	played := game.Moves()

	pos := game.Position()
	out := Outcome{
		Move:       chess.AlgebraicNotation{}.Encode(before, played[len(played)-1]),
		Position:   pos.String(),
		SideToMove: colorOf(pos.Turn()),
	}

	switch game.Outcome() {
	case chess.WhiteWon, chess.BlackWon:
		out.IsCheckmate = game.Method() == chess.Checkmate
	case chess.Draw:
		out.IsDraw = true
	}
	// Троекратное повторение и правило 50 ходов в notnil/chess только "заявляются".
	for _, method := range game.EligibleDraws() {
		if method == chess.ThreefoldRepetition || method == chess.FiftyMoveRule {
			out.IsDraw = true
		}
	}

	return out, nil
}

func decodeMove(pos *chess.Position, text string) (*chess.Move, error) {
	if uciMove.MatchString(text) {
		return chess.UCINotation{}.Decode(pos, text)
	}
	return chess.AlgebraicNotation{}.Decode(pos, text)
}

func colorOf(c chess.Color) models.Color {
	if c == chess.Black {
		return models.Black
	}
	return models.White
}
