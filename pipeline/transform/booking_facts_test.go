package transform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

func requestEvent(id string, userID int64, mentorID string, at int) models.RawEvent {
	return models.RawEvent{EventID: id, EventType: models.EventBookingRequested, UserID: userID, MentorID: mentorID, Timestamp: ts(at)}
}

func confirmEvent(id string, userID int64, mentorID string, at int) models.RawEvent {
	return models.RawEvent{EventID: id, EventType: models.EventBookingConfirmed, UserID: userID, MentorID: mentorID, Timestamp: ts(at)}
}

func cancelEvent(id string, userID int64, mentorID string, at int) models.RawEvent {
	return models.RawEvent{EventID: id, EventType: models.EventBookingCancelled, UserID: userID, MentorID: mentorID, Timestamp: ts(at)}
}

func TestBuildBookingFactsConfirmedWithSession(t *testing.T) {
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		confirmEvent("c1", 1, "m1", 10),
		startEvent("s1", 1, "m1", ts(20)),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)

	booking := bookings[0]
	assert.Equal(t, "b1", booking.BookingID)
	assert.Equal(t, models.BookingStatusConfirmed, booking.Status)
	require.NotNil(t, booking.ResolvedAt)
	assert.Equal(t, ts(10), *booking.ResolvedAt)
	assert.False(t, booking.IsOrphanRequest)
	assert.False(t, booking.IsNoShow)
}

func TestBuildBookingFactsNoShow(t *testing.T) {
	// Подтверждение есть, сессия так и не началась
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		confirmEvent("c1", 1, "m1", 10),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[0].Status)
	assert.True(t, bookings[0].IsNoShow)
}

func TestBuildBookingFactsCancelled(t *testing.T) {
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		cancelEvent("x1", 1, "m1", 5),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusCancelled, bookings[0].Status)
	assert.False(t, bookings[0].IsOrphanRequest)
	assert.False(t, bookings[0].IsNoShow)
}

func TestBuildBookingFactsOrphanRequest(t *testing.T) {
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusPending, bookings[0].Status)
	assert.True(t, bookings[0].IsOrphanRequest)
	assert.Nil(t, bookings[0].ResolvedAt)
}

func TestBuildBookingFactsResolutionBoundedByNextRequest(t *testing.T) {
	// Подтверждение на отметке 70 пришло после второго запроса —
	// оно принадлежит второму бронированию, первое остается orphan
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		requestEvent("b2", 1, "m1", 60),
		confirmEvent("c1", 1, "m1", 70),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 2)

	assert.Equal(t, "b1", bookings[0].BookingID)
	assert.True(t, bookings[0].IsOrphanRequest)

	assert.Equal(t, "b2", bookings[1].BookingID)
	assert.Equal(t, models.BookingStatusConfirmed, bookings[1].Status)
}

func TestBuildBookingFactsEarliestResolutionWins(t *testing.T) {
	// Отмена раньше подтверждения — бронирование отменено
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		confirmEvent("c1", 1, "m1", 30),
		cancelEvent("x1", 1, "m1", 15),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)
	assert.Equal(t, models.BookingStatusCancelled, bookings[0].Status)
	assert.Equal(t, ts(15), *bookings[0].ResolvedAt)
}

func TestBuildBookingFactsNoShowBoundedByNextRequest(t *testing.T) {
	// Сессия на отметке 100 началась после второго запроса: первому
	// подтвержденному бронированию она не засчитывается
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		confirmEvent("c1", 1, "m1", 10),
		requestEvent("b2", 1, "m1", 60),
		confirmEvent("c2", 1, "m1", 70),
		startEvent("s1", 1, "m1", ts(100)),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 2)

	assert.True(t, bookings[0].IsNoShow)
	assert.False(t, bookings[1].IsNoShow)
}

func TestBuildBookingFactsPartitionsIndependent(t *testing.T) {
	// Подтверждение другого ментора не разрешает чужой запрос
	events := []models.RawEvent{
		requestEvent("b1", 1, "m1", 0),
		confirmEvent("c1", 1, "m2", 10),
	}

	bookings := BuildBookingFacts(events)
	require.Len(t, bookings, 1)
	assert.True(t, bookings[0].IsOrphanRequest)
}
