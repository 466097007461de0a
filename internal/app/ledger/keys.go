package ledger

import (
	"fmt"

	"github.com/agoradev/agora/internal/domain"
)

func CounterKeyPollTotal(id domain.PollID) string {
	return fmt.Sprintf("poll:%s:total", id)
}

func CounterKeyOption(pollID domain.PollID, optionID domain.OptionID) string {
	return fmt.Sprintf("poll:%s:option:%s", pollID, optionID)
}
