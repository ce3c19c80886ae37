package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/complaint-hub/internal/domain"
)

// UserRepo is the read-only user directory the delivery core consults for
// role fan-out and notification preferences. User lifecycle management
// belongs to the surrounding application, not this subsystem.
type UserRepo struct {
	client    dynamoAPI
	tableName string
}

func NewUserRepo(client dynamoAPI, tableName string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("user_id", userID),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// ListActiveByRole queries the role GSI and filters for enabled accounts.
// This is the at-dispatch-time membership snapshot: members who join the
// role afterwards do not retroactively receive earlier broadcasts.
func (r *UserRepo) ListActiveByRole(ctx context.Context, role string) ([]domain.User, error) {
	input := &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("role-index"),
		KeyConditionExpression: aws.String("#r = :role"),
		FilterExpression:       aws.String("enable = :one"),
		ExpressionAttributeNames: map[string]string{
			"#r": "role",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":role": &types.AttributeValueMemberS{Value: role},
			":one":  &types.AttributeValueMemberN{Value: "1"},
		},
	}
	// Role fan-out must reach every member, so the query drains all pages.
	var users []domain.User
	for {
		out, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, err
		}
		var page []domain.User
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, err
		}
		users = append(users, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return users, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}
