package gormstore

import (
	"context"
	"fmt"

	"github.com/atvirokodosprendimai/auditlog/internal/adapters/gormstore/gormdb"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	lru "github.com/hashicorp/golang-lru/v2"
)

// userDirectory resolves actor ids to display fields. Only hits are cached so
// users created after a miss become visible on the next read.
type userDirectory struct {
	db    *gormdb.DB
	cache *lru.Cache[string, domain.Actor]
}

func newUserDirectory(db *gormdb.DB, size int) *userDirectory {
	d := &userDirectory{db: db}
	if size > 0 {
		cache, err := lru.New[string, domain.Actor](size)
		if err == nil {
			d.cache = cache
		}
	}
	return d
}

func (d *userDirectory) lookup(ctx context.Context, ids []string) (map[string]domain.Actor, error) {
	found := make(map[string]domain.Actor, len(ids))
	missing := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		if d.cache != nil {
			if actor, ok := d.cache.Get(id); ok {
				found[id] = actor
				continue
			}
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return found, nil
	}

	var rows []userModel
	err := d.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("id IN ?", missing).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("lookup actors: %w", err)
	}
	for _, row := range rows {
		actor := domain.Actor{ID: row.ID, Name: row.Name, Email: row.Email, Role: domain.Role(row.Role)}
		found[row.ID] = actor
		if d.cache != nil {
			d.cache.Add(row.ID, actor)
		}
	}
	return found, nil
}

func (d *userDirectory) enrichActionLogs(ctx context.Context, logs []domain.ActionLog) error {
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ActorID)
	}
	actors, err := d.lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range logs {
		if actor, ok := actors[logs[i].ActorID]; ok {
			a := actor
			logs[i].Actor = &a
		}
	}
	return nil
}

func (d *userDirectory) enrichDataChangeLogs(ctx context.Context, logs []domain.DataChangeLog) error {
	ids := make([]string, 0, len(logs))
	for _, l := range logs {
		ids = append(ids, l.ChangedBy)
	}
	actors, err := d.lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range logs {
		if actor, ok := actors[logs[i].ChangedBy]; ok {
			a := actor
			logs[i].Actor = &a
		}
	}
	return nil
}

func (d *userDirectory) enrichTopActors(ctx context.Context, stats *domain.Statistics) error {
	ids := make([]string, 0, len(stats.TopActors))
	for _, a := range stats.TopActors {
		ids = append(ids, a.ActorID)
	}
	actors, err := d.lookup(ctx, ids)
	if err != nil {
		return err
	}
	for i := range stats.TopActors {
		if actor, ok := actors[stats.TopActors[i].ActorID]; ok {
			a := actor
			stats.TopActors[i].Actor = &a
		}
	}
	return nil
}
