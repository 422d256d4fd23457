package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"sr-chatbot/internal/domain"
	"sr-chatbot/internal/infra/ids"
)

const (
	skPrefixMsg       = "MSG#"
	skState           = "STATE"
	messageTTL        = 30 * 24 * time.Hour // 30-day TTL
	defaultSessionTTL = 24 * time.Hour

	// fixed-width so sort keys order lexically
	sortableTime = "2006-01-02T15:04:05.000000000Z"
)

// dynamodbAPI is the minimal DynamoDB interface required by Client.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Client wraps a DynamoDB table holding session state and the message log.
type Client struct {
	api        dynamodbAPI
	tableName  string
	sessionTTL time.Duration
	now        func() time.Time
}

// New creates a new repository Client. A non-positive sessionTTL falls back
// to 24 hours.
func New(api dynamodbAPI, tableName string, sessionTTL time.Duration) (*Client, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	if sessionTTL <= 0 {
		sessionTTL = defaultSessionTTL
	}
	return &Client{api: api, tableName: tableName, sessionTTL: sessionTTL, now: time.Now}, nil
}

// sessionPK returns the DynamoDB partition key for a sender.
func sessionPK(sender string) string {
	return "SESSION#" + sender
}

// msgSK returns a sort key that orders chronologically and stays unique for
// messages written in the same instant.
func msgSK(ts time.Time) string {
	return skPrefixMsg + ts.UTC().Format(sortableTime) + "#" + ids.NewKSUID()
}

func (c *Client) key(sender string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sender)},
		"SK": &types.AttributeValueMemberS{Value: skState},
	}
}

// LoadSession reads the stored session for sender. found is false when no
// item exists.
func (c *Client) LoadSession(ctx context.Context, sender string) (domain.StateRecord, bool, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(c.tableName),
		Key:            c.key(sender),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.StateRecord{}, false, fmt.Errorf("repository: LoadSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.StateRecord{}, false, nil
	}
	rec, err := itemToState(out.Item)
	if err != nil {
		return domain.StateRecord{}, false, fmt.Errorf("repository: LoadSession decode: %w", err)
	}
	return rec, true, nil
}

// SaveSession writes or replaces the session item.
func (c *Client) SaveSession(ctx context.Context, rec domain.StateRecord) error {
	if strings.TrimSpace(rec.Sender) == "" {
		return errors.New("repository: SaveSession: sender is required")
	}
	ttl := c.now().Add(c.sessionTTL).Unix()
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item:      stateItem(rec, ttl),
	})
	if err != nil {
		return fmt.Errorf("repository: SaveSession: %w", err)
	}
	return nil
}

// DeleteSession removes the session item. Deleting a missing item is not an
// error.
func (c *Client) DeleteSession(ctx context.Context, sender string) error {
	_, err := c.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(c.tableName),
		Key:       c.key(sender),
	})
	if err != nil {
		return fmt.Errorf("repository: DeleteSession: %w", err)
	}
	return nil
}

// AppendMessage writes one message log entry.
func (c *Client) AppendMessage(ctx context.Context, sender, role, text string) error {
	msg := c.newMessage(sender, role, text)
	_, err := c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(c.tableName),
		Item:                messageItem(msg),
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	})
	if err != nil {
		return fmt.Errorf("repository: AppendMessage: %w", err)
	}
	return nil
}

// GetHistory returns up to limit of the most recent messages for sender in
// chronological order.
func (c *Client) GetHistory(ctx context.Context, sender string, limit int) ([]domain.Message, error) {
	in := &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: sessionPK(sender)},
			":prefix": &types.AttributeValueMemberS{Value: skPrefixMsg},
		},
		// Read newest first so LIMIT favors the most recent messages.
		ScanIndexForward: aws.Bool(false),
	}
	if limit > 0 {
		in.Limit = aws.Int32(int32(limit))
	}

	out, err := c.api.Query(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("repository: GetHistory query: %w", err)
	}

	msgs := make([]domain.Message, 0, len(out.Items))
	for _, item := range out.Items {
		msg, err := itemToMessage(item)
		if err != nil {
			return nil, fmt.Errorf("repository: GetHistory unmarshal: %w", err)
		}
		msgs = append(msgs, msg)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

func (c *Client) newMessage(sender, role, text string) domain.Message {
	now := c.now().UTC()
	return domain.Message{
		PK:     sessionPK(sender),
		SK:     msgSK(now),
		Sender: sender,
		Role:   role,
		Text:   text,
		TTL:    now.Add(messageTTL).Unix(),
	}
}

func stateItem(rec domain.StateRecord, ttl int64) map[string]types.AttributeValue {
	options := make([]types.AttributeValue, 0, len(rec.PendingNameOptions))
	for _, o := range rec.PendingNameOptions {
		options = append(options, &types.AttributeValueMemberS{Value: o})
	}
	return map[string]types.AttributeValue{
		"PK":                   &types.AttributeValueMemberS{Value: sessionPK(rec.Sender)},
		"SK":                   &types.AttributeValueMemberS{Value: skState},
		"sender":               &types.AttributeValueMemberS{Value: rec.Sender},
		"stage":                &types.AttributeValueMemberS{Value: rec.Stage},
		"userName":             &types.AttributeValueMemberS{Value: rec.UserName},
		"verified":             &types.AttributeValueMemberBOOL{Value: rec.Verified},
		"verificationAttempts": &types.AttributeValueMemberN{Value: strconv.Itoa(rec.VerificationAttempts)},
		"lastDocumentType":     &types.AttributeValueMemberS{Value: rec.LastDocumentType},
		"awaitingInput":        &types.AttributeValueMemberS{Value: rec.AwaitingInput},
		"pendingNameOptions":   &types.AttributeValueMemberL{Value: options},
		"createdAt":            &types.AttributeValueMemberS{Value: rec.CreatedAt},
		"updatedAt":            &types.AttributeValueMemberS{Value: rec.UpdatedAt},
		"ttl":                  &types.AttributeValueMemberN{Value: strconv.FormatInt(ttl, 10)},
	}
}

// itemToState converts a DynamoDB attribute map to a StateRecord.
func itemToState(item map[string]types.AttributeValue) (domain.StateRecord, error) {
	sender, err := strAttr(item, "sender")
	if err != nil {
		return domain.StateRecord{}, err
	}
	stage, err := strAttr(item, "stage")
	if err != nil {
		return domain.StateRecord{}, err
	}
	attempts, err := intAttr(item, "verificationAttempts")
	if err != nil {
		return domain.StateRecord{}, err
	}
	options, err := strListAttr(item, "pendingNameOptions")
	if err != nil {
		return domain.StateRecord{}, err
	}
	// Optional attributes may be absent on items written by older versions.
	userName, _ := strAttr(item, "userName")
	lastDoc, _ := strAttr(item, "lastDocumentType")
	awaiting, _ := strAttr(item, "awaitingInput")
	createdAt, _ := strAttr(item, "createdAt")
	updatedAt, _ := strAttr(item, "updatedAt")
	verified := false
	if v, ok := item["verified"].(*types.AttributeValueMemberBOOL); ok {
		verified = v.Value
	}

	return domain.StateRecord{
		Sender:               sender,
		Stage:                stage,
		UserName:             userName,
		Verified:             verified,
		VerificationAttempts: attempts,
		LastDocumentType:     lastDoc,
		AwaitingInput:        awaiting,
		PendingNameOptions:   options,
		CreatedAt:            createdAt,
		UpdatedAt:            updatedAt,
	}, nil
}

// itemToMessage converts a DynamoDB attribute map to a Message.
func itemToMessage(item map[string]types.AttributeValue) (domain.Message, error) {
	pk, err := strAttr(item, "PK")
	if err != nil {
		return domain.Message{}, err
	}
	sk, err := strAttr(item, "SK")
	if err != nil {
		return domain.Message{}, err
	}
	text, err := strAttr(item, "text")
	if err != nil {
		return domain.Message{}, err
	}
	sender, _ := strAttr(item, "sender") // allow empty
	role, _ := strAttr(item, "role")     // allow empty

	return domain.Message{
		PK:     pk,
		SK:     sk,
		Sender: sender,
		Role:   role,
		Text:   text,
	}, nil
}

func messageItem(msg domain.Message) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":     &types.AttributeValueMemberS{Value: msg.PK},
		"SK":     &types.AttributeValueMemberS{Value: msg.SK},
		"sender": &types.AttributeValueMemberS{Value: msg.Sender},
		"role":   &types.AttributeValueMemberS{Value: msg.Role},
		"text":   &types.AttributeValueMemberS{Value: msg.Text},
		"ttl":    &types.AttributeValueMemberN{Value: fmt.Sprintf("%d", msg.TTL)},
	}
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func intAttr(item map[string]types.AttributeValue, key string) (int, error) {
	v, ok := item[key]
	if !ok {
		return 0, fmt.Errorf("repository: missing attribute %q", key)
	}
	n, ok := v.(*types.AttributeValueMemberN)
	if !ok {
		return 0, fmt.Errorf("repository: attribute %q is not a number", key)
	}
	parsed, err := strconv.Atoi(n.Value)
	if err != nil {
		return 0, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return parsed, nil
}

// strListAttr reads an L of S attribute. A missing attribute is an empty
// list.
func strListAttr(item map[string]types.AttributeValue, key string) ([]string, error) {
	v, ok := item[key]
	if !ok {
		return nil, nil
	}
	l, ok := v.(*types.AttributeValueMemberL)
	if !ok {
		return nil, fmt.Errorf("repository: attribute %q is not a list", key)
	}
	var out []string
	for i, e := range l.Value {
		s, ok := e.(*types.AttributeValueMemberS)
		if !ok {
			return nil, fmt.Errorf("repository: attribute %q[%d] is not a string", key, i)
		}
		out = append(out, s.Value)
	}
	return out, nil
}
