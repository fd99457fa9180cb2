// Package repo implements the data persistence layer for domain entities on
// top of a docstore.Store. This file provides the inbox functions for
// users/{uid}/notifications.
//
// Records are immutable: there is an add and a delete, no update.
package repo

import (
	"context"

	"github.com/tbourn/go-gamesocial-backend/internal/docstore"
	"github.com/tbourn/go-gamesocial-backend/internal/domain"
)

// NotificationsQuery selects an inbox, newest first.
func NotificationsQuery(uid string, limit int) docstore.Query {
	return docstore.Query{
		Collection: domain.NotificationsPath(uid),
		OrderBy:    "timestamp",
		Desc:       true,
		Limit:      limit,
	}
}

// AddNotification appends rec to recipient's inbox and returns its id.
func AddNotification(ctx context.Context, st docstore.Store, recipient string, rec domain.NotificationRecord) (string, error) {
	if recipient == "" {
		return "", domain.ErrMissingID
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}
	return st.Add(ctx, domain.NotificationsPath(recipient), rec.Fields())
}

// ListNotifications runs NotificationsQuery once.
func ListNotifications(ctx context.Context, st docstore.Store, uid string, limit int) ([]domain.NotificationRecord, error) {
	snaps, err := st.List(ctx, NotificationsQuery(uid, limit))
	if err != nil {
		return nil, err
	}
	return DecodeNotifications(snaps)
}

// DecodeNotifications converts inbox snapshots.
func DecodeNotifications(snaps []docstore.Snapshot) ([]domain.NotificationRecord, error) {
	out := make([]domain.NotificationRecord, 0, len(snaps))
	for _, s := range snaps {
		var n domain.NotificationRecord
		if err := docstore.Decode(s.Fields, &n); err != nil {
			return nil, err
		}
		n.ID = s.ID
		out = append(out, n)
	}
	return out, nil
}

// PruneNotifications deletes everything past the newest keep records and
// returns how many were removed. Deletion stops at the first failure.
func PruneNotifications(ctx context.Context, st docstore.Store, uid string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	snaps, err := st.List(ctx, NotificationsQuery(uid, 0))
	if err != nil {
		return 0, err
	}
	removed := 0
	for i := keep; i < len(snaps); i++ {
		if err := st.Delete(ctx, snaps[i].Path); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}
