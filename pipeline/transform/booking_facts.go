package transform

import (
	"sort"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

// BuildBookingFacts разрешает жизненный цикл запросов бронирования.
//
// Внутри каждой партиции user_id × mentor_id запрос booking_requested
// получает исход — самое раннее событие booking_confirmed или
// booking_cancelled строго после запроса и до следующего запроса
// (та же граничная дисциплина, что и при спаривании сессий: исход
// более позднего бронирования не должен приписываться раннему).
//
// Запрос без исхода — pending, он же orphan-запрос.
// No-show — подтвержденное бронирование, после подтверждения которого
// (и до следующего запроса) не началось ни одной сессии.
func BuildBookingFacts(events []models.RawEvent) []models.BookingFact {
	requests := make(map[partitionKey][]models.RawEvent)
	resolutions := make(map[partitionKey][]models.RawEvent)
	sessionStarts := make(map[partitionKey][]models.RawEvent)

	for _, event := range events {
		key := partitionKey{userID: event.UserID, mentorID: event.MentorID}
		switch event.EventType {
		case models.EventBookingRequested:
			requests[key] = append(requests[key], event)
		case models.EventBookingConfirmed, models.EventBookingCancelled:
			resolutions[key] = append(resolutions[key], event)
		case models.EventSessionStarted:
			sessionStarts[key] = append(sessionStarts[key], event)
		}
	}

	var bookings []models.BookingFact

	for key, partitionRequests := range requests {
		sortByTimestamp(partitionRequests)
		partitionResolutions := resolutions[key]
		sortByTimestamp(partitionResolutions)
		partitionSessions := sessionStarts[key]
		sortByTimestamp(partitionSessions)

		for i, request := range partitionRequests {
			var nextRequest *models.RawEvent
			if i+1 < len(partitionRequests) {
				nextRequest = &partitionRequests[i+1]
			}

			booking := models.BookingFact{
				BookingID:   request.EventID,
				UserID:      key.userID,
				MentorID:    key.mentorID,
				RequestedAt: request.Timestamp,
				Status:      models.BookingStatusPending,
			}

			// Самый ранний исход внутри границ запроса
			for j := range partitionResolutions {
				res := partitionResolutions[j]
				if !res.Timestamp.After(request.Timestamp) {
					continue
				}
				if nextRequest != nil && !res.Timestamp.Before(nextRequest.Timestamp) {
					continue
				}
				resolvedAt := res.Timestamp
				booking.ResolvedAt = &resolvedAt
				if res.EventType == models.EventBookingConfirmed {
					booking.Status = models.BookingStatusConfirmed
				} else {
					booking.Status = models.BookingStatusCancelled
				}
				break
			}

			booking.IsOrphanRequest = booking.Status == models.BookingStatusPending

			if booking.Status == models.BookingStatusConfirmed {
				booking.IsNoShow = !hasSessionAfter(partitionSessions, *booking.ResolvedAt, nextRequest)
			}

			bookings = append(bookings, booking)
		}
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].UserID != bookings[j].UserID {
			return bookings[i].UserID < bookings[j].UserID
		}
		if bookings[i].MentorID != bookings[j].MentorID {
			return bookings[i].MentorID < bookings[j].MentorID
		}
		return bookings[i].RequestedAt.Before(bookings[j].RequestedAt)
	})

	return bookings
}

// hasSessionAfter сообщает, началась ли сессия строго после resolvedAt
// и до следующего запроса (если он есть)
func hasSessionAfter(sessions []models.RawEvent, resolvedAt time.Time, nextRequest *models.RawEvent) bool {
	for _, s := range sessions {
		if !s.Timestamp.After(resolvedAt) {
			continue
		}
		if nextRequest != nil && !s.Timestamp.Before(nextRequest.Timestamp) {
			continue
		}
		return true
	}
	return false
}
