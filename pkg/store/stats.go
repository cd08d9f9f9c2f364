package store

import (
	"fmt"
	"time"

	"neurochat/pkg/domain"
)

// UsageStatistics aggregates message counts for one user over the trailing
// window [now - windowDays, now]. Only messages whose parent chat belongs to
// userID are counted. ModelUsage counts assistant messages per model;
// DailyUsage counts all messages per calendar day.
func (s *ChatGormStore) UsageStatistics(userID string, windowDays int) (domain.UsageStats, error) {
	if windowDays <= 0 {
		windowDays = 30
	}
	threshold := time.Now().UTC().AddDate(0, 0, -windowDays)

	stats := domain.UsageStats{
		ModelUsage: make(map[string]int),
		DailyUsage: make(map[string]int),
		PeriodDays: windowDays,
	}

	countByRole := func(role string) (int64, error) {
		var count int64
		err := s.db.Table("messages").
			Joins("JOIN chats ON chats.id = messages.chat_id").
			Where("chats.user_id = ? AND messages.role = ? AND messages.created_at >= ?",
				userID, role, threshold).
			Count(&count).Error
		return count, err
	}

	userCount, err := countByRole(domain.RoleUser)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("count user messages: %w", err)
	}
	assistantCount, err := countByRole(domain.RoleAssistant)
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("count assistant messages: %w", err)
	}
	stats.UserMessages = int(userCount)
	stats.AssistantMessages = int(assistantCount)
	stats.TotalMessages = stats.UserMessages + stats.AssistantMessages

	var modelRows []struct {
		Model string
		Count int
	}
	err = s.db.Table("messages").
		Select("chats.model AS model, COUNT(*) AS count").
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ? AND messages.role = ? AND messages.created_at >= ?",
			userID, domain.RoleAssistant, threshold).
		Group("chats.model").
		Scan(&modelRows).Error
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("aggregate model usage: %w", err)
	}
	for _, row := range modelRows {
		stats.ModelUsage[row.Model] = row.Count
	}

	// Day bucketing happens in Go so it stays independent of how the driver
	// serializes timestamps.
	var timestamps []time.Time
	err = s.db.Table("messages").
		Joins("JOIN chats ON chats.id = messages.chat_id").
		Where("chats.user_id = ? AND messages.created_at >= ?", userID, threshold).
		Pluck("messages.created_at", &timestamps).Error
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("aggregate daily usage: %w", err)
	}
	for _, ts := range timestamps {
		stats.DailyUsage[ts.UTC().Format("2006-01-02")]++
	}

	s.recorder.Record(userID, "Retrieved usage statistics", fmt.Sprintf("Period: %d days", windowDays))
	return stats, nil
}
