package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Vasu1712/adminchat/internal/models"
	"github.com/Vasu1712/adminchat/internal/storage"
)

// Seed writes the first-run demo conversations and messages. Each record is
// written only if it has never been written before, so a second call (or a
// second session starting against the same store) is a no-op.
func (s *Store) Seed(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	ago := func(d time.Duration) int64 { return now.Add(-d).UnixMilli() }

	seededConvs, err := s.seedRecord(ctx, storage.ConversationsKey, []models.Conversation{
		{ID: "c1", Title: "John Doe", Role: models.RoleClient, Unread: 2, Last: "Hi, I need update on plot A12", UpdatedAt: ago(time.Hour)},
		{ID: "c2", Title: "Ada Ibrahim", Role: models.RoleClient, Last: "Thanks!", UpdatedAt: ago(24 * time.Hour)},
		{ID: "c3", Title: "Chike Udo", Role: models.RoleMarketer, Last: "Sent property link", UpdatedAt: ago(20 * time.Minute)},
	})
	if err != nil {
		return err
	}

	seededMsgs, err := s.seedRecord(ctx, storage.MessagesKey, map[string][]models.Message{
		"c1": {
			{ID: "m1", From: "c1", To: models.AdminID, Body: "Hello, any update on plot A12?", TS: ago(time.Hour)},
			{ID: "m2", From: models.AdminID, To: "c1", Body: "Yes — we scheduled inspection this week", TS: ago(50 * time.Minute), Status: models.StatusDelivered},
		},
		"c2": {
			{ID: "m3", From: "c2", To: models.AdminID, Body: "Thanks for the newsletter", TS: ago(24 * time.Hour)},
		},
		"c3": {
			{ID: "m4", From: "c3", To: models.AdminID, Body: "Shared link: http://example.com/prop/22", TS: ago(20 * time.Minute)},
		},
	})
	if err != nil {
		return err
	}

	if seededConvs || seededMsgs {
		s.logger.Info("seeded demo data",
			"conversations", seededConvs,
			"messages", seededMsgs)
	}
	return nil
}

func (s *Store) seedRecord(ctx context.Context, key string, v any) (bool, error) {
	_, err := s.records.Get(ctx, key)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return false, fmt.Errorf("seed %s: %w", key, err)
	}
	if err := s.writeJSON(ctx, key, v); err != nil {
		return false, err
	}
	return true, nil
}
