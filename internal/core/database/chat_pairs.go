package db

import "github.com/markdave123-py/Contexta/internal/models"

// PairMessages folds an ordered message log into question/answer pairs. A
// user message opens a pair; it is closed by an immediately following
// assistant message, otherwise the answer stays empty. Messages that cannot
// open a pair are skipped.
func PairMessages(msgs []models.ChatMessage) []models.QAPair {
	pairs := []models.QAPair{}
	for i := 0; i < len(msgs); {
		if msgs[i].Role != models.RoleUser {
			i++
			continue
		}
		pair := models.QAPair{User: msgs[i].Message}
		if i+1 < len(msgs) && msgs[i+1].Role == models.RoleAssistant {
			pair.Assistant = msgs[i+1].Message
			i += 2
		} else {
			i++
		}
		pairs = append(pairs, pair)
	}
	return pairs
}
