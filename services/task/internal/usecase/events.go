package usecase

// Interested-party rules for notification fan-out. Recipient order is
// preserved so downstream processing stays deterministic.

// interestedInCreated returns the recipients of a task creation event. When
// the task has assignees they are notified; otherwise the creator gets a
// confirmation.
func interestedInCreated(assigneeIDs []string, creatorID string) []string {
	if len(assigneeIDs) > 0 {
		return dedup(assigneeIDs)
	}
	return []string{creatorID}
}

// interestedInUpdated returns everyone involved with the task except the user
// who made the change.
func interestedInUpdated(assigneeIDs []string, creatorID, actorID string) []string {
	return withoutActor(union(assigneeIDs, creatorID), actorID)
}

// interestedInComment returns everyone involved with the task except the
// comment's author.
func interestedInComment(assigneeIDs []string, creatorID, authorID string) []string {
	return withoutActor(union(assigneeIDs, creatorID), authorID)
}

// union appends creatorID to the assignee list unless already present,
// deduplicating while preserving first-seen order.
func union(assigneeIDs []string, creatorID string) []string {
	return dedup(append(append([]string{}, assigneeIDs...), creatorID))
}

func withoutActor(userIDs []string, actorID string) []string {
	result := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if id != actorID {
			result = append(result, id)
		}
	}
	return result
}

func dedup(userIDs []string) []string {
	seen := make(map[string]struct{}, len(userIDs))
	result := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}
