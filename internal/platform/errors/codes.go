package errors

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// Permission and structural errors
	CodePermissionDenied Code = "PERMISSION_DENIED"
	CodeIllegalOperation Code = "ILLEGAL_OPERATION"

	// Campaign errors
	CodeCampaignNameEmpty     Code = "CAMPAIGN_NAME_EMPTY"
	CodeCampaignEmptyDmUID    Code = "CAMPAIGN_EMPTY_DM_UID"
	CodeCampaignInvalidStatus Code = "CAMPAIGN_INVALID_STATUS"

	// Member errors
	CodeMemberEmptyUID         Code = "MEMBER_EMPTY_UID"
	CodeMemberEmptyCampaignID  Code = "MEMBER_EMPTY_CAMPAIGN_ID"
	CodeMemberInvalidRole      Code = "MEMBER_INVALID_ROLE"
	CodeMemberEmptyDisplayName Code = "MEMBER_EMPTY_DISPLAY_NAME"

	// Invite errors
	CodeInviteEmptyEmail      Code = "INVITE_EMPTY_EMAIL"
	CodeInviteEmptyCampaignID Code = "INVITE_EMPTY_CAMPAIGN_ID"
	CodeInviteDuplicate       Code = "INVITE_DUPLICATE"
	CodeInviteExpired         Code = "INVITE_EXPIRED"
	CodeInviteNotPending      Code = "INVITE_NOT_PENDING"

	// Encounter errors
	CodeEncounterNameEmpty        Code = "ENCOUNTER_NAME_EMPTY"
	CodeEncounterNoCombatants     Code = "ENCOUNTER_NO_COMBATANTS"
	CodeEncounterAlreadyActive    Code = "ENCOUNTER_ALREADY_ACTIVE"
	CodeEncounterNotActive        Code = "ENCOUNTER_NOT_ACTIVE"
	CodeEncounterTurnConflict     Code = "ENCOUNTER_TURN_CONFLICT"
	CodeEncounterUnknownCombatant Code = "ENCOUNTER_UNKNOWN_COMBATANT"

	// Roll request errors
	CodeRollEmptyType         Code = "ROLL_EMPTY_TYPE"
	CodeRollNoTargets         Code = "ROLL_NO_TARGETS"
	CodeRollDuplicateResponse Code = "ROLL_DUPLICATE_RESPONSE"

	// Dice errors
	CodeDiceMissing     Code = "DICE_MISSING"
	CodeDiceInvalidSpec Code = "DICE_INVALID_SPEC"

	// Note errors
	CodeNoteEmptyTitle Code = "NOTE_EMPTY_TITLE"
	CodeNoteInvalidTag Code = "NOTE_INVALID_TAG"

	// Upstream collaborator errors
	CodeUpstreamMalformed   Code = "UPSTREAM_MALFORMED"
	CodeUpstreamRateLimited Code = "UPSTREAM_RATE_LIMITED"

	// Identity errors
	CodeIdentityUnverified Code = "IDENTITY_UNVERIFIED"

	// Storage errors
	CodeNotFound Code = "NOT_FOUND"
)
