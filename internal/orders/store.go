package orders

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/tillpoint/go-pos-sync/internal/aws"
)

// ErrStatusMismatch signals that a conditional transition lost the race: the stored
// status no longer matches what the caller expected. Callers re-read and decide.
var ErrStatusMismatch = errors.New("status mismatch/conditional failed")

// ErrOrderExists signals a duplicate create for an order id.
var ErrOrderExists = errors.New("order already exists")

// ErrOrderNotFound signals an unknown order id.
var ErrOrderNotFound = errors.New("order not found")

// ErrInvalidState signals an operation attempted from a status that does not allow it.
var ErrInvalidState = errors.New("invalid order state for operation")

// Store encapsulates operations on the orders table. Every status transition goes
// through TransitionSync so status, attempts and next_attempt_at change atomically.
type Store struct {
	client    aws.DynamoDBAPI
	tableName string
	nowFunc   func() time.Time
}

// NewStore creates a new orders Store.
func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{
		client:    client,
		tableName: tableName,
		nowFunc:   time.Now,
	}
}

// Create persists a brand-new order record. The order id acts as the uniqueness
// guard; a second create for the same id returns ErrOrderExists.
func (s *Store) Create(ctx context.Context, order Order) error {
	now := s.nowFunc()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	item, err := attributevalue.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: awsString("attribute_not_exists(order_id)"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrOrderExists
		}
		return fmt.Errorf("put item: %w", err)
	}
	return nil
}

// Get fetches an order by id. Returns (nil, nil) if not found.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// SyncUpdate describes the fields a transition writes alongside the new status.
// Pointer fields are left untouched when nil.
type SyncUpdate struct {
	Status            string
	IncrementAttempts bool
	NextAttemptAt     *int64 // epoch seconds
	LastError         *string
	ErrorKind         *string
	RemoteOrderID     *string
	PaymentMethod     *string
	DiscardReason     *string
}

// TransitionSync applies a sync transition with compare-and-swap semantics on the
// current status: the update only lands if the stored status equals expected.
// Returns ErrStatusMismatch when the condition fails (including unknown ids, since
// an absent item has no status to match).
func (s *Store) TransitionSync(ctx context.Context, orderID, expected string, upd SyncUpdate) error {
	now := s.nowFunc()

	sets := []string{"#s = :new", "updated_at = :ua"}
	names := map[string]string{"#s": "status"}
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: upd.Status},
		":ua":       &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		":expected": &types.AttributeValueMemberS{Value: expected},
	}

	if upd.IncrementAttempts {
		sets = append(sets, "attempts = if_not_exists(attempts, :zero) + :inc")
		values[":zero"] = &types.AttributeValueMemberN{Value: "0"}
		values[":inc"] = &types.AttributeValueMemberN{Value: "1"}
	}
	if upd.NextAttemptAt != nil {
		sets = append(sets, "next_attempt_at = :naa")
		values[":naa"] = &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", *upd.NextAttemptAt)}
	}
	if upd.LastError != nil {
		sets = append(sets, "last_error = :le")
		values[":le"] = &types.AttributeValueMemberS{Value: *upd.LastError}
	}
	if upd.ErrorKind != nil {
		sets = append(sets, "error_kind = :ek")
		values[":ek"] = &types.AttributeValueMemberS{Value: *upd.ErrorKind}
	}
	if upd.RemoteOrderID != nil {
		sets = append(sets, "remote_order_id = :ro")
		values[":ro"] = &types.AttributeValueMemberS{Value: *upd.RemoteOrderID}
	}
	if upd.PaymentMethod != nil {
		sets = append(sets, "payment_method = :pm")
		values[":pm"] = &types.AttributeValueMemberS{Value: *upd.PaymentMethod}
	}
	if upd.DiscardReason != nil {
		sets = append(sets, "discard_reason = :dr")
		values[":dr"] = &types.AttributeValueMemberS{Value: *upd.DiscardReason}
	}

	updateExpr := "SET " + strings.Join(sets, ", ")
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:          &updateExpr,
		ExpressionAttributeNames:  names,
		ExpressionAttributeValues: values,
		ConditionExpression:       awsString("#s = :expected"),
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrStatusMismatch
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// SetPaymentState writes the advisory payment marker. No status condition: the
// marker is informational and never races with sync transitions.
func (s *Store) SetPaymentState(ctx context.Context, orderID, state string) error {
	now := s.nowFunc()
	_, err := s.client.UpdateItem(ctx, &dyn.UpdateItemInput{
		TableName: &s.tableName,
		Key: map[string]types.AttributeValue{
			"order_id": &types.AttributeValueMemberS{Value: orderID},
		},
		UpdateExpression:    awsString("SET payment_state = :ps, updated_at = :ua"),
		ConditionExpression: awsString("attribute_exists(order_id)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ps": &types.AttributeValueMemberS{Value: state},
			":ua": &types.AttributeValueMemberS{Value: now.UTC().Format(time.RFC3339)},
		},
	})
	if err != nil {
		var cc *types.ConditionalCheckFailedException
		if errors.As(err, &cc) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("update item: %w", err)
	}
	return nil
}

// ListByStatus returns all orders in any of the given statuses, oldest first.
// An empty status list returns every order.
func (s *Store) ListByStatus(ctx context.Context, statuses ...string) ([]Order, error) {
	input := &dyn.ScanInput{TableName: &s.tableName}
	if len(statuses) > 0 {
		placeholders := make([]string, 0, len(statuses))
		values := map[string]types.AttributeValue{}
		for i, st := range statuses {
			ph := fmt.Sprintf(":s%d", i)
			placeholders = append(placeholders, ph)
			values[ph] = &types.AttributeValueMemberS{Value: st}
		}
		input.FilterExpression = awsString("#s IN (" + strings.Join(placeholders, ", ") + ")")
		input.ExpressionAttributeNames = map[string]string{"#s": "status"}
		input.ExpressionAttributeValues = values
	}

	orders, err := s.scanAll(ctx, input)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(orders)
	return orders, nil
}

// ListEligible returns orders the scheduler may attempt now: pending or failed,
// with next_attempt_at due, oldest first.
func (s *Store) ListEligible(ctx context.Context, now time.Time) ([]Order, error) {
	input := &dyn.ScanInput{
		TableName:                &s.tableName,
		FilterExpression:         awsString("(#s = :pending OR #s = :failed) AND next_attempt_at <= :now"),
		ExpressionAttributeNames: map[string]string{"#s": "status"},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pending": &types.AttributeValueMemberS{Value: StatusPending},
			":failed":  &types.AttributeValueMemberS{Value: StatusFailed},
			":now":     &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", now.Unix())},
		},
	}
	orders, err := s.scanAll(ctx, input)
	if err != nil {
		return nil, err
	}
	sortOldestFirst(orders)
	return orders, nil
}

// CountUnsynced counts orders not yet delivered: pending, syncing or failed.
func (s *Store) CountUnsynced(ctx context.Context) (int, error) {
	orders, err := s.ListByStatus(ctx, StatusPending, StatusSyncing, StatusFailed)
	if err != nil {
		return 0, err
	}
	return len(orders), nil
}

func (s *Store) scanAll(ctx context.Context, input *dyn.ScanInput) ([]Order, error) {
	var out []Order
	for {
		page, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		var batch []Order
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &batch); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}
		out = append(out, batch...)
		if len(page.LastEvaluatedKey) == 0 {
			return out, nil
		}
		input.ExclusiveStartKey = page.LastEvaluatedKey
	}
}

func sortOldestFirst(orders []Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}

func awsString(s string) *string { return &s }
