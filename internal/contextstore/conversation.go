package contextstore

import (
	"fmt"
	"sort"
	"time"
)

// conversationTTL is how long stored conversation turns stay readable.
const conversationTTL = 7 * 24 * time.Hour

// userTag builds the tag that links entries to a user.
func userTag(userID string) string {
	return fmt.Sprintf("user:%s", userID)
}

// ConversationTurn is one user/assistant exchange.
type ConversationTurn struct {
	Timestamp   time.Time      `json:"timestamp"`
	UserMessage string         `json:"user_message"`
	AIResponse  string         `json:"ai_response"`
	Metadata    map[string]any `json:"metadata,omitempty"`
}

// StoreConversationTurn records one exchange for the user. Turns are
// tagged for per-user lookup and expire after a week.
func (s *Store) StoreConversationTurn(userID, userMessage, aiResponse string, metadata map[string]any) string {
	data := map[string]any{
		"user_id":      userID,
		"timestamp":    time.Now(),
		"user_message": userMessage,
		"ai_response":  aiResponse,
	}
	if metadata != nil {
		data["metadata"] = metadata
	}
	return s.Store(TypeConversationHistory, data,
		WithTags(userTag(userID), "conversation"),
		WithTTL(conversationTTL),
	)
}

// GetConversationHistory returns the user's most recent turns, newest
// first.
func (s *Store) GetConversationHistory(userID string, limit int) []ConversationTurn {
	if limit <= 0 {
		limit = 10
	}

	// Over-fetch to survive entries that are not well-formed turns.
	entries := s.Search(Query{
		Type:  TypeConversationHistory,
		Tags:  []string{userTag(userID)},
		Limit: limit * 2,
	})

	turns := make([]ConversationTurn, 0, len(entries))
	for _, entry := range entries {
		userMsg, okUser := entry.Data["user_message"].(string)
		aiResp, okAI := entry.Data["ai_response"].(string)
		if !okUser || !okAI {
			continue
		}
		ts, ok := entry.Data["timestamp"].(time.Time)
		if !ok {
			ts = entry.CreatedAt
		}
		metadata, _ := entry.Data["metadata"].(map[string]any)
		turns = append(turns, ConversationTurn{
			Timestamp:   ts,
			UserMessage: userMsg,
			AIResponse:  aiResp,
			Metadata:    metadata,
		})
	}

	sort.Slice(turns, func(i, j int) bool { return turns[i].Timestamp.After(turns[j].Timestamp) })
	if len(turns) > limit {
		turns = turns[:limit]
	}
	return turns
}

// UserContextSummary aggregates everything known about a user.
type UserContextSummary struct {
	UserID       string             `json:"user_id"`
	Profile      map[string]any     `json:"profile"`
	Conversation []ConversationTurn `json:"conversation_history"`
	LastUpdated  time.Time          `json:"last_updated"`
}

// GetUserContext merges the user's profile entries with their recent
// conversation history.
func (s *Store) GetUserContext(userID string) UserContextSummary {
	summary := UserContextSummary{
		UserID:      userID,
		Profile:     make(map[string]any),
		LastUpdated: time.Now(),
	}

	profiles := s.Search(Query{
		Type: TypeUserProfile,
		Tags: []string{userTag(userID)},
	})
	for _, entry := range profiles {
		for k, v := range entry.Data {
			summary.Profile[k] = v
		}
	}

	summary.Conversation = s.GetConversationHistory(userID, 10)
	return summary
}
