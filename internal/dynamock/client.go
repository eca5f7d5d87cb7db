// Package dynamock is an in-memory stand-in for the DynamoDB API subset the
// engine uses. It understands exactly the expressions the order store emits:
// conditional puts, conditional SET updates with an attempts increment, and the
// two scan filters. Tests across packages share it instead of each carrying
// its own mock.
package dynamock

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"

	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// Client implements the engine's DynamoDBAPI against process memory.
// Tables maps table name -> order_id -> item.
type Client struct {
	mu     sync.Mutex
	Tables map[string]map[string]map[string]types.AttributeValue

	// optional injected failures
	PutErr    error
	GetErr    error
	UpdateErr error
	ScanErr   error
}

func New() *Client {
	return &Client{Tables: map[string]map[string]map[string]types.AttributeValue{}}
}

func (c *Client) ensureTable(tbl string) map[string]map[string]types.AttributeValue {
	if _, ok := c.Tables[tbl]; !ok {
		c.Tables[tbl] = map[string]map[string]types.AttributeValue{}
	}
	return c.Tables[tbl]
}

// Seed stores an item directly, bypassing conditions.
func (c *Client) Seed(table, pk string, item map[string]types.AttributeValue) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ensureTable(table)[pk] = item
}

func pkOf(attrs map[string]types.AttributeValue) (string, error) {
	v, ok := attrs["order_id"]
	if !ok {
		return "", errors.New("no order_id attribute")
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", errors.New("order_id is not a string")
	}
	return s.Value, nil
}

func (c *Client) PutItem(ctx context.Context, params *dyn.PutItemInput, optFns ...func(*dyn.Options)) (*dyn.PutItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.PutErr != nil {
		return nil, c.PutErr
	}
	table := c.ensureTable(*params.TableName)
	pk, err := pkOf(params.Item)
	if err != nil {
		return nil, err
	}
	if params.ConditionExpression != nil && strings.HasPrefix(*params.ConditionExpression, "attribute_not_exists") {
		if _, exists := table[pk]; exists {
			return nil, &types.ConditionalCheckFailedException{}
		}
	}
	table[pk] = params.Item
	return &dyn.PutItemOutput{}, nil
}

func (c *Client) GetItem(ctx context.Context, params *dyn.GetItemInput, optFns ...func(*dyn.Options)) (*dyn.GetItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.GetErr != nil {
		return nil, c.GetErr
	}
	table := c.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, ok := table[pk]
	if !ok {
		return &dyn.GetItemOutput{}, nil
	}
	return &dyn.GetItemOutput{Item: item}, nil
}

func (c *Client) UpdateItem(ctx context.Context, params *dyn.UpdateItemInput, optFns ...func(*dyn.Options)) (*dyn.UpdateItemOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.UpdateErr != nil {
		return nil, c.UpdateErr
	}
	table := c.ensureTable(*params.TableName)
	pk, err := pkOf(params.Key)
	if err != nil {
		return nil, err
	}
	item, exists := table[pk]

	if params.ConditionExpression != nil {
		cond := *params.ConditionExpression
		switch {
		case cond == "#s = :expected":
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
			curr, ok := item["status"].(*types.AttributeValueMemberS)
			if !ok {
				return nil, &types.ConditionalCheckFailedException{}
			}
			expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberS).Value
			if curr.Value != expected {
				return nil, &types.ConditionalCheckFailedException{}
			}
		case strings.HasPrefix(cond, "attribute_exists"):
			if !exists {
				return nil, &types.ConditionalCheckFailedException{}
			}
		default:
			return nil, errors.New("unsupported condition expression: " + cond)
		}
	}
	if !exists {
		return nil, errors.New("item not found")
	}

	if err := applySet(item, params); err != nil {
		return nil, err
	}
	table[pk] = item
	return &dyn.UpdateItemOutput{Attributes: item}, nil
}

// applySet interprets "SET lhs = rhs, ..." clauses against the item.
func applySet(item map[string]types.AttributeValue, params *dyn.UpdateItemInput) error {
	expr := *params.UpdateExpression
	if !strings.HasPrefix(expr, "SET ") {
		return errors.New("unsupported update expression: " + expr)
	}
	for _, clause := range splitClauses(strings.TrimPrefix(expr, "SET ")) {
		parts := strings.SplitN(clause, " = ", 2)
		if len(parts) != 2 {
			return errors.New("unparseable clause: " + clause)
		}
		lhs, rhs := parts[0], parts[1]
		if name, ok := params.ExpressionAttributeNames[lhs]; ok {
			lhs = name
		}
		if strings.Contains(rhs, "if_not_exists") {
			// attempts = if_not_exists(attempts, :zero) + :inc
			curr := 0
			if v, ok := item[lhs].(*types.AttributeValueMemberN); ok {
				curr, _ = strconv.Atoi(v.Value)
			}
			item[lhs] = &types.AttributeValueMemberN{Value: strconv.Itoa(curr + 1)}
			continue
		}
		v, ok := params.ExpressionAttributeValues[rhs]
		if !ok {
			return errors.New("missing value for placeholder " + rhs)
		}
		item[lhs] = v
	}
	return nil
}

// splitClauses splits a SET expression body on top-level commas only, so
// function arguments like if_not_exists(attempts, :zero) stay whole.
func splitClauses(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, r := range s {
		switch r {
		case '(':
			depth++
		case ')':
			depth--
		case ',':
			if depth == 0 {
				out = append(out, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		}
	}
	return append(out, strings.TrimSpace(s[start:]))
}

func (c *Client) Scan(ctx context.Context, params *dyn.ScanInput, optFns ...func(*dyn.Options)) (*dyn.ScanOutput, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.ScanErr != nil {
		return nil, c.ScanErr
	}
	table := c.ensureTable(*params.TableName)

	var items []map[string]types.AttributeValue
	for _, item := range table {
		if matchesFilter(item, params) {
			items = append(items, item)
		}
	}
	return &dyn.ScanOutput{Items: items, Count: int32(len(items))}, nil
}

func matchesFilter(item map[string]types.AttributeValue, params *dyn.ScanInput) bool {
	if params.FilterExpression == nil {
		return true
	}
	status := ""
	if v, ok := item["status"].(*types.AttributeValueMemberS); ok {
		status = v.Value
	}
	expr := *params.FilterExpression

	// (#s = :pending OR #s = :failed) AND next_attempt_at <= :now
	if strings.Contains(expr, "next_attempt_at") {
		pending := params.ExpressionAttributeValues[":pending"].(*types.AttributeValueMemberS).Value
		failed := params.ExpressionAttributeValues[":failed"].(*types.AttributeValueMemberS).Value
		if status != pending && status != failed {
			return false
		}
		now, _ := strconv.ParseInt(params.ExpressionAttributeValues[":now"].(*types.AttributeValueMemberN).Value, 10, 64)
		var next int64
		if v, ok := item["next_attempt_at"].(*types.AttributeValueMemberN); ok {
			next, _ = strconv.ParseInt(v.Value, 10, 64)
		}
		return next <= now
	}

	// #s IN (:s0, :s1, ...)
	for ph, v := range params.ExpressionAttributeValues {
		if !strings.HasPrefix(ph, ":s") {
			continue
		}
		if s, ok := v.(*types.AttributeValueMemberS); ok && s.Value == status {
			return true
		}
	}
	return false
}
