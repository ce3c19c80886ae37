package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/complaint-hub/internal/domain"
)

// ReminderRepo provides typed DynamoDB operations for the reminders table.
type ReminderRepo struct {
	client    dynamoAPI
	tableName string
}

func NewReminderRepo(client dynamoAPI, tableName string) *ReminderRepo {
	return &ReminderRepo{client: client, tableName: tableName}
}

func (r *ReminderRepo) Put(ctx context.Context, rem *domain.Reminder) error {
	item, err := attributevalue.MarshalMap(rem)
	if err != nil {
		return fmt.Errorf("marshal reminder: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *ReminderRepo) Get(ctx context.Context, reminderID string) (*domain.Reminder, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("reminder_id", reminderID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("reminder %s: %w", reminderID, domain.ErrNotFound)
	}
	var rem domain.Reminder
	if err := attributevalue.UnmarshalMap(out.Item, &rem); err != nil {
		return nil, err
	}
	return &rem, nil
}

// ListDuePending queries the status-due_at GSI for pending reminders whose
// due instant is at or before now. now is compared in UTC, matching how
// due_at is stored.
func (r *ReminderRepo) ListDuePending(ctx context.Context, now time.Time) ([]domain.Reminder, error) {
	cutoff, err := attributevalue.Marshal(now.UTC())
	if err != nil {
		return nil, err
	}
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("status-due_at-index"),
		KeyConditionExpression: aws.String("#s = :pending AND #d <= :now"),
		ExpressionAttributeNames: map[string]string{
			"#s": fieldStatus,
			"#d": fieldDueAt,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: string(domain.ReminderPending)},
			":now":     cutoff,
		},
	}
	return r.queryAll(ctx, input)
}

// ListByAssignee returns all reminders addressed to userID.
func (r *ReminderRepo) ListByAssignee(ctx context.Context, userID string) ([]domain.Reminder, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("assigned_to-index"),
		KeyConditionExpression: aws.String("assigned_to = :uid"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
		},
	}
	return r.queryAll(ctx, input)
}

// queryAll drains every page of a query. A due scan or an assignee's list
// must not silently stop at the 1MB page boundary.
func (r *ReminderRepo) queryAll(ctx context.Context, input *dynamodb.QueryInput) ([]domain.Reminder, error) {
	var reminders []domain.Reminder
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.Reminder
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		reminders = append(reminders, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return reminders, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (r *ReminderRepo) Update(ctx context.Context, reminderID string, updates map[string]interface{}) error {
	updates[fieldUpdatedAt] = time.Now().UTC()
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("reminder_id", reminderID),
		UpdateExpression:          aws.String(ue.Expr),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	return err
}

func (r *ReminderRepo) HardDelete(ctx context.Context, reminderID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("reminder_id", reminderID),
	})
	return err
}
