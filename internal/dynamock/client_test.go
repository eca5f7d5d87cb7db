package dynamock

import (
	"context"
	"reflect"
	"testing"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

func TestSplitClauses_CommaInsideFunctionArgs(t *testing.T) {
	got := splitClauses("#s = :new, updated_at = :ua, attempts = if_not_exists(attempts, :zero) + :inc")
	want := []string{
		"#s = :new",
		"updated_at = :ua",
		"attempts = if_not_exists(attempts, :zero) + :inc",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("clauses = %q, want %q", got, want)
	}
}

func TestUpdateItem_AttemptsIncrementWithStatusCAS(t *testing.T) {
	c := New()
	c.Seed("pos_orders", "o1", map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: "o1"},
		"status":   &types.AttributeValueMemberS{Value: "PENDING"},
	})

	tbl := "pos_orders"
	expr := "SET #s = :new, updated_at = :ua, attempts = if_not_exists(attempts, :zero) + :inc"
	cond := "#s = :expected"
	claim := func(expected, next string) error {
		_, err := c.UpdateItem(context.Background(), &dyn.UpdateItemInput{
			TableName: &tbl,
			Key: map[string]types.AttributeValue{
				"order_id": &types.AttributeValueMemberS{Value: "o1"},
			},
			UpdateExpression:         &expr,
			ConditionExpression:      &cond,
			ExpressionAttributeNames: map[string]string{"#s": "status"},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":new":      &types.AttributeValueMemberS{Value: next},
				":ua":       &types.AttributeValueMemberS{Value: "2026-03-01T09:00:00Z"},
				":zero":     &types.AttributeValueMemberN{Value: "0"},
				":inc":      &types.AttributeValueMemberN{Value: "1"},
				":expected": &types.AttributeValueMemberS{Value: expected},
			},
		})
		return err
	}

	if err := claim("PENDING", "SYNCING"); err != nil {
		t.Fatalf("first claim: %v", err)
	}
	if err := claim("SYNCING", "SYNCING"); err != nil {
		t.Fatalf("second claim: %v", err)
	}

	item := c.Tables[tbl]["o1"]
	attempts, ok := item["attempts"].(*types.AttributeValueMemberN)
	if !ok || attempts.Value != "2" {
		t.Fatalf("attempts = %#v, want N 2", item["attempts"])
	}
	if status := item["status"].(*types.AttributeValueMemberS).Value; status != "SYNCING" {
		t.Fatalf("status = %s, want SYNCING", status)
	}
}
