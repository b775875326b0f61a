package transform

import (
	"sort"
	"time"

	"github.com/packlabs/mentor_analytics/pipeline/models"
)

// partitionKey — ключ разбиения потока событий: сессии существуют
// только внутри пары (пользователь, ментор)
type partitionKey struct {
	userID   int64
	mentorID string
}

// PairSessions восстанавливает сессии из независимых событий
// session_started / session_ended.
//
// Алгоритм (внутри каждой партиции user_id × mentor_id, события по
// возрастанию временной метки):
//   - для каждого события начала S вычисляется next_start — метка
//     следующего начала в той же партиции (или отсутствует, если S последнее);
//   - кандидаты на завершение: события окончания E с E.ts > S.ts и
//     (next_start отсутствует ИЛИ E.ts < next_start, граница строгая);
//   - из кандидатов берется самый ранний — иначе позднее, чужое
//     окончание приписалось бы сессии, после которой уже началась новая;
//   - кандидатов нет: ended_at = nil, is_duration_estimated = true,
//     длительность — defaultDurationMinutes (downstream-агрегации
//     нужна числовая длительность);
//   - кандидат найден: длительность в целых минутах, оценка не нужна.
//
// Идентификатор сессии — идентификатор события начала.
// Партиции независимы: события других пар (пользователь, ментор)
// не влияют на результат.
func PairSessions(events []models.RawEvent, defaultDurationMinutes int) []models.SessionFact {
	starts := make(map[partitionKey][]models.RawEvent)
	ends := make(map[partitionKey][]models.RawEvent)

	for _, event := range events {
		key := partitionKey{userID: event.UserID, mentorID: event.MentorID}
		switch event.EventType {
		case models.EventSessionStarted:
			starts[key] = append(starts[key], event)
		case models.EventSessionEnded:
			ends[key] = append(ends[key], event)
		}
	}

	var sessions []models.SessionFact

	for key, partitionStarts := range starts {
		sortByTimestamp(partitionStarts)
		partitionEnds := ends[key]
		sortByTimestamp(partitionEnds)

		for i, start := range partitionStarts {
			var nextStart *models.RawEvent
			if i+1 < len(partitionStarts) {
				nextStart = &partitionStarts[i+1]
			}

			session := models.SessionFact{
				SessionID: start.EventID,
				UserID:    key.userID,
				MentorID:  key.mentorID,
				StartedAt: start.Timestamp,
			}

			// Окончания отсортированы по возрастанию, поэтому первый
			// подходящий кандидат и есть самый ранний (MIN)
			for j := range partitionEnds {
				end := partitionEnds[j]
				if !end.Timestamp.After(start.Timestamp) {
					continue
				}
				if nextStart != nil && !end.Timestamp.Before(nextStart.Timestamp) {
					continue
				}
				endedAt := end.Timestamp
				session.EndedAt = &endedAt
				break
			}

			if session.EndedAt != nil {
				session.DurationMinutes = int(session.EndedAt.Sub(session.StartedAt) / time.Minute)
				session.IsDurationEstimated = false
			} else {
				session.DurationMinutes = defaultDurationMinutes
				session.IsDurationEstimated = true
			}

			sessions = append(sessions, session)
		}
	}

	// Детерминированный порядок витрины
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].UserID != sessions[j].UserID {
			return sessions[i].UserID < sessions[j].UserID
		}
		if sessions[i].MentorID != sessions[j].MentorID {
			return sessions[i].MentorID < sessions[j].MentorID
		}
		return sessions[i].StartedAt.Before(sessions[j].StartedAt)
	})

	return sessions
}

// sortByTimestamp сортирует события по возрастанию временной метки;
// при равенстве — по идентификатору, чтобы порядок был стабильным
func sortByTimestamp(events []models.RawEvent) {
	sort.Slice(events, func(i, j int) bool {
		if !events[i].Timestamp.Equal(events[j].Timestamp) {
			return events[i].Timestamp.Before(events[j].Timestamp)
		}
		return events[i].EventID < events[j].EventID
	})
}
