package dynamo

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/complaint-hub/internal/domain"
)

// NotificationRepo provides typed DynamoDB operations for the notifications table.
// Every mutation initiated on behalf of a recipient carries a condition
// expression on user_id, so ids that belong to someone else are skipped
// at the row level rather than rejected with an error.
type NotificationRepo struct {
	client    dynamoAPI
	tableName string
}

func NewNotificationRepo(client dynamoAPI, tableName string) *NotificationRepo {
	return &NotificationRepo{client: client, tableName: tableName}
}

func (r *NotificationRepo) Put(ctx context.Context, n *domain.Notification) error {
	item, err := attributevalue.MarshalMap(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *NotificationRepo) Get(ctx context.Context, notificationID string) (*domain.Notification, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("notification_id", notificationID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("notification %s: %w", notificationID, domain.ErrNotFound)
	}
	var n domain.Notification
	if err := attributevalue.UnmarshalMap(out.Item, &n); err != nil {
		return nil, err
	}
	return &n, nil
}

// ListByUser queries the user_id-created_at GSI newest-first. When unreadOnly
// is set, read rows are filtered out server-side. DynamoDB applies Limit
// before the filter and caps a page at 1MB, so the query follows
// LastEvaluatedKey until limit rows (or the end of the partition) is
// reached; limit <= 0 means all rows.
func (r *NotificationRepo) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int32) ([]domain.Notification, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-created_at-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: aws.Bool(false), // newest first
	}
	if limit > 0 {
		input.Limit = aws.Int32(limit)
	}
	if unreadOnly {
		input.FilterExpression = aws.String("#r = :unread")
		input.ExpressionAttributeNames = map[string]string{"#r": fieldRead}
		input.ExpressionAttributeValues[":unread"] = &types.AttributeValueMemberBOOL{Value: false}
	}

	var notifications []domain.Notification
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Notification
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		notifications = append(notifications, page...)
		if limit > 0 && int32(len(notifications)) >= limit {
			return notifications[:limit], nil
		}
		if len(out.LastEvaluatedKey) == 0 {
			return notifications, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// MarkRead sets read=true on each of ids that is owned by userID. Rows that
// fail the ownership condition are skipped silently; other errors abort.
func (r *NotificationRepo) MarkRead(ctx context.Context, userID string, ids []string) error {
	for _, id := range ids {
		_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("notification_id", id),
			UpdateExpression:    aws.String("SET #r = :t"),
			ConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeNames: map[string]string{
				"#r": fieldRead,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":t":   &types.AttributeValueMemberBOOL{Value: true},
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
		})
		if err != nil && !isConditionFailed(err) {
			return fmt.Errorf("mark read %s: %w", id, err)
		}
	}
	return nil
}

// MarkAllRead sets read=true on every unread row owned by userID.
func (r *NotificationRepo) MarkAllRead(ctx context.Context, userID string) error {
	unread, err := r.ListByUser(ctx, userID, true, 0)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(unread))
	for _, n := range unread {
		ids = append(ids, n.NotificationID)
	}
	return r.MarkRead(ctx, userID, ids)
}

// Delete hard-deletes each of ids owned by userID; foreign ids are skipped.
func (r *NotificationRepo) Delete(ctx context.Context, userID string, ids []string) error {
	for _, id := range ids {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(r.tableName),
			Key:                 strKey("notification_id", id),
			ConditionExpression: aws.String("user_id = :uid"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":uid": &types.AttributeValueMemberS{Value: userID},
			},
		})
		if err != nil && !isConditionFailed(err) {
			return fmt.Errorf("delete %s: %w", id, err)
		}
	}
	return nil
}

// DeleteAll hard-deletes every row owned by userID.
func (r *NotificationRepo) DeleteAll(ctx context.Context, userID string) error {
	all, err := r.ListByUser(ctx, userID, false, 0)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(all))
	for _, n := range all {
		ids = append(ids, n.NotificationID)
	}
	return r.Delete(ctx, userID, ids)
}

// isConditionFailed reports whether err is a failed ownership condition.
// A row deleted concurrently also surfaces this way, which is fine: the
// outcome the caller asked for already holds.
func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
