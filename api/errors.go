package api

import (
	"errors"
	"fmt"

	"TiltifyBot/tiltify"
)

var (
	ErrPermission         = errors.New("api: missing manage channels permission")
	ErrNotSetUp           = errors.New("api: guild is not set up")
	ErrAlreadySetUp       = errors.New("api: guild is already set up")
	ErrCampaignTracked    = errors.New("api: campaign already tracked")
	ErrCampaignNotTracked = errors.New("api: campaign not tracked")
	ErrLastCampaign       = errors.New("api: only one campaign left")
	ErrCampaignRetired    = errors.New("api: campaign has ended")
	ErrTeamDisbanded      = errors.New("api: team has been disbanded")
	ErrInvalidOption      = errors.New("api: unsupported option")
)

// RejectError names the campaign or team a precondition failed for.
type RejectError struct {
	Err  error
	Name string
}

func reject(err error, name string) *RejectError {
	return &RejectError{Err: err, Name: name}
}

func (e *RejectError) Error() string { return fmt.Sprintf("%v: %s", e.Err, e.Name) }

func (e *RejectError) Unwrap() error { return e.Err }

// ErrorMessage maps a command error to the text shown to the user.
func ErrorMessage(err error) string {
	name := ""
	var rej *RejectError
	if errors.As(err, &rej) {
		name = rej.Name
	}

	switch {
	case errors.Is(err, ErrPermission):
		return permissionMessage
	case errors.Is(err, ErrNotSetUp):
		return notSetUpMessage
	case errors.Is(err, ErrAlreadySetUp):
		return alreadySetUpMessage
	case errors.Is(err, ErrCampaignTracked):
		return fmt.Sprintf(alreadyTrackedFormat, name)
	case errors.Is(err, ErrCampaignNotTracked):
		return fmt.Sprintf(notTrackedFormat, name)
	case errors.Is(err, ErrLastCampaign):
		return lastCampaignMessage
	case errors.Is(err, ErrCampaignRetired):
		return fmt.Sprintf(retiredFormat, name)
	case errors.Is(err, ErrTeamDisbanded):
		return fmt.Sprintf(disbandedFormat, name)
	case errors.Is(err, ErrInvalidOption):
		return invalidOptionMessage
	case errors.Is(err, tiltify.ErrBadRequest):
		return badRequestMessage
	case errors.Is(err, tiltify.ErrUnauthorized):
		return unauthorizedMessage
	case errors.Is(err, tiltify.ErrForbidden):
		return forbiddenMessage
	case errors.Is(err, tiltify.ErrNotFound):
		return notFoundMessage
	case errors.Is(err, tiltify.ErrUnprocessable):
		return unprocessableMessage
	case errors.Is(err, tiltify.ErrUnknownStatus), errors.Is(err, tiltify.ErrUnavailable):
		return unreachableMessage
	default:
		return internalErrorMessage
	}
}
