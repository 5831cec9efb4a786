package conversations

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/Vasu1712/adminchat/internal/models"
)

// ConversationView is a conversation as the list pane shows it.
type ConversationView struct {
	models.Conversation
	Initials string `json:"initials"`
	Ago      string `json:"ago"`
}

func newConversationView(c models.Conversation, nowMs int64) ConversationView {
	return ConversationView{
		Conversation: c,
		Initials:     Initials(c.Title),
		Ago:          Ago(c.UpdatedAt, nowMs),
	}
}

// Initials returns the upper-cased first letters of the first two words of
// name.
func Initials(name string) string {
	var b strings.Builder
	for i, word := range strings.Split(name, " ") {
		if i == 2 {
			break
		}
		if r, _ := utf8.DecodeRuneInString(word); word != "" {
			b.WriteRune(r)
		}
	}
	return strings.ToUpper(b.String())
}

// Ago renders the time between ts and now, both in Unix milliseconds, as
// "now", "5m", "3h" or "2d". A zero ts renders as "".
func Ago(ts, nowMs int64) string {
	if ts == 0 {
		return ""
	}
	mins := math.Round(float64(nowMs-ts) / 60000)
	if mins < 1 {
		return "now"
	}
	if mins < 60 {
		return fmt.Sprintf("%dm", int64(mins))
	}
	hrs := math.Round(mins / 60)
	if hrs < 24 {
		return fmt.Sprintf("%dh", int64(hrs))
	}
	return fmt.Sprintf("%dd", int64(math.Round(hrs/24)))
}
