package services

import (
	"fmt"

	"budget/internal/core"
)

// Notification texts are reproduced verbatim from the mail templates existing
// consumers expect; amounts always carry two decimal places and dates are ISO.

func activationMessage(l core.Limit) string {
	return fmt.Sprintf(
		"Начал действовать новый лимит расходов в размере %s. Тип периода: '%s'. Период: %s - %s.",
		l.Amount.Format(), l.Period.Title(), l.StartDate, periodEnd(l))
}

func renewalMessage(l core.Limit, oldStart, oldEnd, newStart core.Date) string {
	return fmt.Sprintf(
		"Ваш лимит расходов в размере %s был автоматически продлен. Тип периода: '%s'. Старый период: %s - %s. Новый период начался с %s. Автопродление: %s.",
		l.Amount.Format(), l.Period.Title(), oldStart, oldEnd, newStart, autoRenewLabel(l.AutoRenew))
}

func expirationMessage(l core.Limit) string {
	return fmt.Sprintf(
		"Ваш лимит расходов в размере %s истек. Тип периода: '%s'. Период: %s - %s. Для установки нового лимита, пожалуйста, войдите в систему.",
		l.Amount.Format(), l.Period.Title(), l.StartDate, periodEnd(l))
}

func limitExceededMessage(total core.Money) string {
	return fmt.Sprintf("Превышен лимит расходов! Текущая сумма: %s", total.Format())
}

func autoRenewLabel(on bool) string {
	if on {
		return "включено"
	}
	return "выключено"
}

// periodEnd renders the end of a limit's range; an indefinite limit has none.
func periodEnd(l core.Limit) string {
	if l.EndDate.IsZero() {
		return "бессрочно"
	}
	return l.EndDate.String()
}
