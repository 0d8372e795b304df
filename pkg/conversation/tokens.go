package conversation

import (
	"unicode/utf8"

	"github.com/proteinchat/proteinchat-go/pkg/embedding"
)

// runesPerToken is the rough LLaMA tokenizer ratio for English text.
const runesPerToken = 4

// estimateContext approximates the model input length: text tokens from a
// rune heuristic plus one position per embedded residue.
func estimateContext(prompt string, proteins []*embedding.Embedding) int {
	runes := utf8.RuneCountInString(prompt)
	total := (runes + runesPerToken - 1) / runesPerToken
	for _, p := range proteins {
		total += p.Rows()
	}
	return total
}
