package history

import (
	"strings"

	"tokendash/pkg/models"
)

// Match reports whether the event involves account and, if so, in which
// direction. An empty account matches nothing. When the account is both sender
// and recipient the transfer counts as Outbound.
func Match(ev models.TransferEvent, account string) (bool, models.Direction) {
	if account == "" {
		return false, models.Inbound
	}
	isFrom := strings.EqualFold(ev.From, account)
	isTo := strings.EqualFold(ev.To, account)
	if isFrom {
		return true, models.Outbound
	}
	return isTo, models.Inbound
}
