package dynamo

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/complaint-hub/internal/domain"
)

func reminderPage(t *testing.T, more bool, rs ...domain.Reminder) *dynamodb.QueryOutput {
	t.Helper()
	items := make([]map[string]types.AttributeValue, 0, len(rs))
	for _, r := range rs {
		item, err := attributevalue.MarshalMap(r)
		require.NoError(t, err)
		items = append(items, item)
	}
	out := &dynamodb.QueryOutput{Items: items}
	if more {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			"reminder_id": items[len(items)-1]["reminder_id"],
		}
	}
	return out
}

func pendingReminder(rid string, dueAt time.Time) domain.Reminder {
	return domain.Reminder{
		ReminderID: rid,
		AssignedTo: "agent-1",
		Status:     domain.ReminderPending,
		DueAt:      dueAt,
	}
}

func TestListDuePending_FollowsPagination(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeDynamo{pages: []*dynamodb.QueryOutput{
		reminderPage(t, true, pendingReminder("r-1", now.Add(-time.Hour))),
		reminderPage(t, false, pendingReminder("r-2", now.Add(-time.Minute))),
	}}
	repo := NewReminderRepo(client, "reminders")

	got, err := repo.ListDuePending(context.Background(), now)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "r-2", got[1].ReminderID)

	require.Len(t, client.startKeys, 2)
	assert.NotEmpty(t, client.startKeys[1])
}

func TestListByAssignee_FollowsPagination(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeDynamo{pages: []*dynamodb.QueryOutput{
		reminderPage(t, true, pendingReminder("r-1", now)),
		reminderPage(t, false, pendingReminder("r-2", now)),
	}}
	repo := NewReminderRepo(client, "reminders")

	got, err := repo.ListByAssignee(context.Background(), "agent-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}
