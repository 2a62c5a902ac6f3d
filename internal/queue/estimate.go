package queue

import (
	"sort"

	"qms/queue-core/internal/models"
)

// EstimateWaitMinutes spreads the waiting work over the officers able to
// call. With no such officer the whole queue is assumed to be served serially.
func EstimateWaitMinutes(waiting, averageMinutes, officers int) int {
	work := waiting * averageMinutes
	if officers <= 0 {
		return work
	}
	return (work + officers - 1) / officers
}

// SortWaiting orders tickets the way call-next selects them.
func SortWaiting(tickets []models.Ticket) {
	sort.SliceStable(tickets, func(i, j int) bool {
		return tickets[i].Before(tickets[j])
	})
}

// Position is the 1-based rank of ticket among waiting, or 0 when the
// ticket is not waiting.
func Position(ticket models.Ticket, waiting []models.Ticket) int {
	if ticket.Status != models.StatusWaiting {
		return 0
	}
	ahead := 0
	for _, other := range waiting {
		if other.TicketID == ticket.TicketID || other.ServiceID != ticket.ServiceID {
			continue
		}
		if other.Status == models.StatusWaiting && other.Before(ticket) {
			ahead++
		}
	}
	return ahead + 1
}

// Summarize computes the daily counters from the day's tickets. Averages
// cover Completed tickets only and stay nil when no ticket qualifies.
func Summarize(day models.Day, serviceID string, tickets []models.Ticket) models.DailyStats {
	stats := models.DailyStats{
		Day:       day.Key,
		ServiceID: serviceID,
		ByStatus:  make(map[models.Status]int, len(models.Statuses)),
	}
	for _, status := range models.Statuses {
		stats.ByStatus[status] = 0
	}

	var waitSum, serviceSum float64
	var waitCount, serviceCount int
	for _, ticket := range tickets {
		if serviceID != "" && ticket.ServiceID != serviceID {
			continue
		}
		if !day.Contains(ticket.CreatedAt) {
			continue
		}
		stats.Total++
		stats.ByStatus[ticket.Status]++
		if ticket.Status != models.StatusCompleted {
			continue
		}
		if ticket.CalledAt != nil {
			waitSum += ticket.CalledAt.Sub(ticket.CreatedAt).Minutes()
			waitCount++
		}
		if d, ok := ticket.ServiceTime(); ok {
			serviceSum += d.Minutes()
			serviceCount++
		}
	}
	if waitCount > 0 {
		avg := waitSum / float64(waitCount)
		stats.AvgWaitMinutes = &avg
	}
	if serviceCount > 0 {
		avg := serviceSum / float64(serviceCount)
		stats.AvgServiceMinutes = &avg
	}
	return stats
}
