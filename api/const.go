package api

const (
	tiltifySiteURL = "https://tiltify.com"

	permissionMessage    = "You do not have permission to use this command."
	notSetUpMessage      = "Set up the bot first!"
	alreadySetUpMessage  = "This server is already in the database, please use `/add` to add a campaign or `/delete` ."
	alreadyTrackedFormat = "Campaign `%s` is already being tracked."
	notTrackedFormat     = "Campaign `%s` is not being tracked."
	lastCampaignMessage  = "There is only one active campaign, please use `/delete` instead."
	retiredFormat        = "`%s` has already ended, please choose an active campaign."
	disbandedFormat      = "`%s` has been disbanded, please choose an active team."
	invalidOptionMessage = "That option is not supported."
	internalErrorMessage = "Something went wrong on our side. Please try again later."

	badRequestMessage    = "Internal Error `400: Bad Request`"
	unauthorizedMessage  = "Your Tiltify access token is invalid. Please check your access token in the bot's config file. `401: Not Authorized`"
	forbiddenMessage     = "You do not have access to this resource. Please check your access token in the bot's config file. `403: Forbidden`"
	notFoundMessage      = "Your campaign/team/cause/event was not found. Please check your id. `404: Not Found`"
	unprocessableMessage = "Internal Error `422: Unprocessable Entity`"
	unreachableMessage   = "There was an error getting to the Tiltify API. Please try again later. `500: Internal Server Error`"

	pingFormat           = "`%d` ms"
	setupCampaignFormat  = "Donations have been setup for campaign `%s`."
	setupEntityFormat    = "Donations have been setup for %s `%s`, %d active campaigns were found."
	enabledMessage       = "Tiltify donations have been **enabled** on this server!"
	disabledMessage      = "Tiltify donations have been **disabled** on this server."
	addedFormat          = "Campaign `%s` has been added."
	removedFormat        = "Campaign `%s` has been removed."
	channelFormat        = "Donations channel has been changed to <#%s>"
	refreshedMessage     = "Campaigns have been refreshed."
	deletedMessage       = "The bot was deactivated. To set up again, please use `/setup`."
	queryNotFoundFormat  = "Query `%s` could not be found."
	noActiveFormat       = "`%s` does not have any active campaigns."
	allowInactiveMessage = "Inactive campaigns can now be tracked."
	denyInactiveMessage  = "Inactive campaigns will no longer be tracked."
	listTitle            = "Tracked Campaigns"
	listEmptyMessage     = "No campaigns are being tracked."
)
