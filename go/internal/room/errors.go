package room

import (
	"errors"

	"github.com/mcdev12/bingo/go/internal/wallet"
)

var (
	ErrNotIdentified     = errors.New("identify before playing")
	ErrAlreadyIdentified = errors.New("connection already identified as another account")
	ErrInvalidAccount    = errors.New("account id is required")
	ErrRoundInProgress   = errors.New("round in progress")
	ErrCardTaken         = errors.New("card taken")
	ErrUnknownCard       = errors.New("unknown card")
	ErrNoCard            = errors.New("no card selected")
	ErrRoundNotPlaying   = errors.New("round is not playing")
	ErrRoundEnded        = errors.New("round already ended")
	ErrClaimPending      = errors.New("claim already being checked")
	ErrNoWinningPattern  = errors.New("no winning pattern on card")
	ErrAlreadyRunning    = errors.New("room already running")
	errWalletUnavailable = errors.New("wallet unavailable, try again")
)

var userFacing = []error{
	ErrNotIdentified,
	ErrAlreadyIdentified,
	ErrInvalidAccount,
	ErrRoundInProgress,
	ErrCardTaken,
	ErrUnknownCard,
	ErrNoCard,
	ErrRoundNotPlaying,
	ErrRoundEnded,
	ErrClaimPending,
	ErrNoWinningPattern,
	wallet.ErrInsufficientFunds,
}

// reason maps an error to the text shown to the player.
func reason(err error) string {
	for _, e := range userFacing {
		if errors.Is(err, e) {
			return e.Error()
		}
	}
	return errWalletUnavailable.Error()
}
