// Package dynamodb stores registrations and tenants in DynamoDB tables,
// one item per entity keyed by its ID.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	awsddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/neomorfeo/controlplane/internal/domain"
)

// API is the subset of the DynamoDB client the repositories use.
type API interface {
	GetItem(ctx context.Context, in *awsddb.GetItemInput, optFns ...func(*awsddb.Options)) (*awsddb.GetItemOutput, error)
	PutItem(ctx context.Context, in *awsddb.PutItemInput, optFns ...func(*awsddb.Options)) (*awsddb.PutItemOutput, error)
	UpdateItem(ctx context.Context, in *awsddb.UpdateItemInput, optFns ...func(*awsddb.Options)) (*awsddb.UpdateItemOutput, error)
	Scan(ctx context.Context, in *awsddb.ScanInput, optFns ...func(*awsddb.Options)) (*awsddb.ScanOutput, error)
	Query(ctx context.Context, in *awsddb.QueryInput, optFns ...func(*awsddb.Options)) (*awsddb.QueryOutput, error)
}

// Compile-time check: the SDK client satisfies API.
var _ API = (*awsddb.Client)(nil)

// table holds the generic item operations shared by both repositories.
type table struct {
	api  API
	name string
	key  string
}

func (t table) keyOf(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{t.key: &types.AttributeValueMemberS{Value: id}}
}

// put writes item only if no item with the same key exists. It reports
// false when the condition failed.
func (t table) put(ctx context.Context, item domain.Attributes) (bool, error) {
	av, err := attributevalue.MarshalMap(map[string]any(item))
	if err != nil {
		return false, fmt.Errorf("marshaling item: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.NameNoDotSplit(t.key))).
		Build()
	if err != nil {
		return false, fmt.Errorf("building condition: %w", err)
	}

	_, err = t.api.PutItem(ctx, &awsddb.PutItemInput{
		TableName:                aws.String(t.name),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if isConditionFailed(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("putting item into %s: %w", t.name, err)
	}
	return true, nil
}

// get returns the item for id, or nil when there is none.
func (t table) get(ctx context.Context, id string) (domain.Attributes, error) {
	out, err := t.api.GetItem(ctx, &awsddb.GetItemInput{
		TableName:      aws.String(t.name),
		Key:            t.keyOf(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting item from %s: %w", t.name, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	return decode(out.Item)
}

// update applies patch to an existing item and returns the full new item,
// or nil when the item does not exist. An empty patch is a plain read.
func (t table) update(ctx context.Context, id string, patch domain.Attributes) (domain.Attributes, error) {
	if len(patch) == 0 {
		return t.get(ctx, id)
	}

	var upd expression.UpdateBuilder
	for _, k := range slices.Sorted(maps.Keys(patch)) {
		upd = upd.Set(expression.NameNoDotSplit(k), expression.Value(patch[k]))
	}
	expr, err := expression.NewBuilder().
		WithUpdate(upd).
		WithCondition(expression.AttributeExists(expression.NameNoDotSplit(t.key))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("building update: %w", err)
	}

	out, err := t.api.UpdateItem(ctx, &awsddb.UpdateItemInput{
		TableName:                 aws.String(t.name),
		Key:                       t.keyOf(id),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("updating item in %s: %w", t.name, err)
	}
	return decode(out.Attributes)
}

// scan reads one page of items. The continuation token is the key of the
// last item returned.
func (t table) scan(ctx context.Context, page domain.PageRequest) ([]domain.Attributes, string, error) {
	in := &awsddb.ScanInput{
		TableName: aws.String(t.name),
		Limit:     aws.Int32(int32(page.Limit)),
	}
	if page.Token != "" {
		in.ExclusiveStartKey = t.keyOf(page.Token)
	}

	out, err := t.api.Scan(ctx, in)
	if err != nil {
		return nil, "", fmt.Errorf("scanning %s: %w", t.name, err)
	}

	items := make([]domain.Attributes, 0, len(out.Items))
	for _, raw := range out.Items {
		item, err := decode(raw)
		if err != nil {
			return nil, "", err
		}
		items = append(items, item)
	}

	var next string
	if s, ok := out.LastEvaluatedKey[t.key].(*types.AttributeValueMemberS); ok {
		next = s.Value
	}
	return items, next, nil
}

func decode(av map[string]types.AttributeValue) (domain.Attributes, error) {
	var item map[string]any
	if err := attributevalue.UnmarshalMap(av, &item); err != nil {
		return nil, fmt.Errorf("unmarshaling item: %w", err)
	}
	return domain.Attributes(item), nil
}

func isConditionFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
