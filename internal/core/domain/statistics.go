package domain

import "sort"

const TopActorsLimit = 10

type ActionCount struct {
	Action Action `json:"action"`
	Count  int64  `json:"count"`
}

type EntityCount struct {
	Entity string `json:"entity"`
	Count  int64  `json:"count"`
}

type ActorCount struct {
	ActorID string `json:"actorId"`
	Count   int64  `json:"count"`
	Actor   *Actor `json:"actor,omitempty"`
}

type Statistics struct {
	TotalLogs   int64         `json:"totalLogs"`
	ActionStats []ActionCount `json:"actionStats"`
	EntityStats []EntityCount `json:"entityStats"`
	TopActors   []ActorCount  `json:"topActors"`
}

// StatisticsRow is one bucket of the grouped action log count.
type StatisticsRow struct {
	Action  Action
	Entity  string
	ActorID string
	Count   int64
}

// FoldStatistics derives every aggregate from the same grouped rows, so the
// totals agree by construction. Rows without an actor count toward every
// view except TopActors.
func FoldStatistics(rows []StatisticsRow) Statistics {
	byAction := map[Action]int64{}
	byEntity := map[string]int64{}
	byActor := map[string]int64{}
	var total int64

	for _, row := range rows {
		total += row.Count
		byAction[row.Action] += row.Count
		byEntity[row.Entity] += row.Count
		if row.ActorID != "" {
			byActor[row.ActorID] += row.Count
		}
	}

	stats := Statistics{
		TotalLogs:   total,
		ActionStats: make([]ActionCount, 0, len(byAction)),
		EntityStats: make([]EntityCount, 0, len(byEntity)),
		TopActors:   make([]ActorCount, 0, len(byActor)),
	}
	for a, n := range byAction {
		stats.ActionStats = append(stats.ActionStats, ActionCount{Action: a, Count: n})
	}
	for e, n := range byEntity {
		stats.EntityStats = append(stats.EntityStats, EntityCount{Entity: e, Count: n})
	}
	for id, n := range byActor {
		stats.TopActors = append(stats.TopActors, ActorCount{ActorID: id, Count: n})
	}

	sort.Slice(stats.ActionStats, func(i, j int) bool {
		if stats.ActionStats[i].Count != stats.ActionStats[j].Count {
			return stats.ActionStats[i].Count > stats.ActionStats[j].Count
		}
		return stats.ActionStats[i].Action < stats.ActionStats[j].Action
	})
	sort.Slice(stats.EntityStats, func(i, j int) bool {
		if stats.EntityStats[i].Count != stats.EntityStats[j].Count {
			return stats.EntityStats[i].Count > stats.EntityStats[j].Count
		}
		return stats.EntityStats[i].Entity < stats.EntityStats[j].Entity
	})
	sort.Slice(stats.TopActors, func(i, j int) bool {
		if stats.TopActors[i].Count != stats.TopActors[j].Count {
			return stats.TopActors[i].Count > stats.TopActors[j].Count
		}
		return stats.TopActors[i].ActorID < stats.TopActors[j].ActorID
	})
	if len(stats.TopActors) > TopActorsLimit {
		stats.TopActors = stats.TopActors[:TopActorsLimit]
	}
	return stats
}
