package i18n

func init() {
	RegisterCatalog("en-US", NewCatalog("en-US", map[Code]string{
		"UNKNOWN":         "Something went wrong. Please try again.",
		"UNAUTHENTICATED": "Sign in to continue.",
		"INVALID_REQUEST": "The request could not be understood.",
		"USER_BLOCKLISTED": "This account is not allowed to participate in battles.",
		"CRON_KEY_INVALID": "Invalid scheduler credentials.",
		"ADMIN_REQUIRED":   "Administrator access is required.",

		"CHALLENGE_SELF_TARGET":       "You cannot challenge yourself.",
		"CHALLENGE_INVALID_TARGET":    "Choose a valid opponent and topic.",
		"CHALLENGE_INVALID_DURATION":  "Choose one of the allowed battle durations.",
		"CHALLENGE_DUPLICATE":         "An unresolved battle with this opponent already exists for this topic.",
		"CHALLENGE_INVALID_ACTION":    "Unknown challenge response.",
		"CHALLENGE_NOT_AWAITING_USER": "This challenge is waiting for the other side to respond.",
		"CHALLENGE_ALREADY_RESPONDED": "This challenge has already been resolved.",
		"CHALLENGE_TAUNT_TOO_LONG":    "The opening message is too long.",

		"BATTLE_NOT_FOUND":       "Battle not found.",
		"BATTLE_NOT_ACTIVE":      "This battle is not in progress.",
		"BATTLE_ALREADY_ENDED":   "This battle has already ended.",
		"BATTLE_NOT_PARTICIPANT": "Only battle participants can do that.",
		"BATTLE_NOT_YOUR_TURN":   "It is your opponent's turn.",
		"BATTLE_TURN_CONFLICT":   "Your move raced another update. Refresh and try again.",
		"BATTLE_INVALID_WINNER":  "The winner must be one of the battle participants.",

		"GROUND_EMPTY":     "Write your argument before submitting.",
		"GROUND_TOO_LONG":  "Arguments are limited to {{.MaxLength}} characters.",
		"CONTENT_REJECTED": "This content violates the community guidelines.",

		"COMMENT_EMPTY":    "Write a comment before submitting.",
		"COMMENT_TOO_LONG": "Comments are limited to {{.MaxLength}} characters.",

		"NOT_FOUND": "Resource not found.",
		"CONFLICT":  "The resource already exists.",
	}))
}
