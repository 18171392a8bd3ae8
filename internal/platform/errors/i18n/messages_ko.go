package i18n

func init() {
	RegisterCatalog("ko-KR", NewCatalog("ko-KR", map[Code]string{
		"UNKNOWN":         "문제가 발생했습니다. 다시 시도해 주세요.",
		"UNAUTHENTICATED": "로그인이 필요합니다.",
		"INVALID_REQUEST": "요청을 처리할 수 없습니다.",
		"USER_BLOCKLISTED": "배틀에 참여할 수 없는 계정입니다.",
		"ADMIN_REQUIRED":   "관리자 권한이 필요합니다.",

		"CHALLENGE_SELF_TARGET":       "자기 자신에게 도전할 수 없습니다.",
		"CHALLENGE_INVALID_TARGET":    "올바른 상대와 주제를 선택해 주세요.",
		"CHALLENGE_INVALID_DURATION":  "허용된 배틀 시간 중 하나를 선택해 주세요.",
		"CHALLENGE_DUPLICATE":         "이 주제에 대해 해당 상대와 진행 중인 배틀이 이미 있습니다.",
		"CHALLENGE_INVALID_ACTION":    "알 수 없는 응답입니다.",
		"CHALLENGE_NOT_AWAITING_USER": "상대방의 응답을 기다리고 있는 도전입니다.",
		"CHALLENGE_ALREADY_RESPONDED": "이미 처리된 도전입니다.",
		"CHALLENGE_TAUNT_TOO_LONG":    "도전 메시지가 너무 깁니다.",

		"BATTLE_NOT_FOUND":       "배틀을 찾을 수 없습니다.",
		"BATTLE_NOT_ACTIVE":      "진행 중인 배틀이 아닙니다.",
		"BATTLE_ALREADY_ENDED":   "이미 종료된 배틀입니다.",
		"BATTLE_NOT_PARTICIPANT": "배틀 참가자만 할 수 있습니다.",
		"BATTLE_NOT_YOUR_TURN":   "상대방의 차례입니다.",
		"BATTLE_TURN_CONFLICT":   "다른 변경과 충돌했습니다. 새로고침 후 다시 시도해 주세요.",
		"BATTLE_INVALID_WINNER":  "승자는 배틀 참가자여야 합니다.",

		"GROUND_EMPTY":     "논거를 입력한 후 제출해 주세요.",
		"GROUND_TOO_LONG":  "논거는 {{.MaxLength}}자까지 입력할 수 있습니다.",
		"CONTENT_REJECTED": "커뮤니티 가이드라인에 어긋나는 내용입니다.",

		"COMMENT_EMPTY":    "댓글을 입력한 후 제출해 주세요.",
		"COMMENT_TOO_LONG": "댓글은 {{.MaxLength}}자까지 입력할 수 있습니다.",
	}))
}
