package repository

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"sr-chatbot/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	deleteErr    error
	queryOut     *dynamodb.QueryOutput
	queryErr     error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastDelInput *dynamodb.DeleteItemInput
	lastQueryIn  *dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.lastQueryIn = in
	return f.queryOut, f.queryErr
}

func makeMessageItem(sk, role, text string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK":   &types.AttributeValueMemberS{Value: "SESSION#6012"},
		"SK":   &types.AttributeValueMemberS{Value: sk},
		"role": &types.AttributeValueMemberS{Value: role},
		"text": &types.AttributeValueMemberS{Value: text},
	}
}

func sampleRecord() domain.StateRecord {
	return domain.StateRecord{
		Sender:               "6012",
		Stage:                "NAME_VERIFICATION",
		UserName:             "",
		Verified:             false,
		VerificationAttempts: 1,
		AwaitingInput:        "name_choice",
		PendingNameOptions:   []string{"ABC Corp", "Other Co"},
		CreatedAt:            "2026-02-25T10:00:00Z",
		UpdatedAt:            "2026-02-25T10:05:00Z",
	}
}

var fixedNow = time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table", time.Hour)
	require.NoError(t, err)
	c.now = func() time.Time { return fixedNow }
	return c
}

func TestSaveThenLoadSession_RoundTrip(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	rec := sampleRecord()

	require.NoError(t, c.SaveSession(context.Background(), rec))
	item := db.lastPutInput.Item
	require.Equal(t, "SESSION#6012", item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, skState, item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "1772017200", item["ttl"].(*types.AttributeValueMemberN).Value)

	db.getOut = &dynamodb.GetItemOutput{Item: item}
	got, found, err := c.LoadSession(context.Background(), "6012")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, rec, got)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestLoadSession_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	c := mustNewClient(t, db)
	_, found, err := c.LoadSession(context.Background(), "6012")
	require.NoError(t, err)
	require.False(t, found)
}

func TestLoadSession_GetItemError(t *testing.T) {
	db := &fakeDynamo{getErr: errors.New("boom")}
	c := mustNewClient(t, db)
	_, _, err := c.LoadSession(context.Background(), "6012")
	require.Error(t, err)
	require.Contains(t, err.Error(), "LoadSession")
}

func TestLoadSession_MalformedAttempts(t *testing.T) {
	item := stateItem(sampleRecord(), 0)
	item["verificationAttempts"] = &types.AttributeValueMemberS{Value: "bad"}
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	c := mustNewClient(t, db)
	_, _, err := c.LoadSession(context.Background(), "6012")
	require.Error(t, err)
	require.Contains(t, err.Error(), "decode")
}

func TestLoadSession_ToleratesMissingOptionalAttributes(t *testing.T) {
	item := map[string]types.AttributeValue{
		"sender":               &types.AttributeValueMemberS{Value: "6012"},
		"stage":                &types.AttributeValueMemberS{Value: "GREETING"},
		"verificationAttempts": &types.AttributeValueMemberN{Value: "0"},
	}
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item}}
	c := mustNewClient(t, db)
	rec, found, err := c.LoadSession(context.Background(), "6012")
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, domain.StateRecord{Sender: "6012", Stage: "GREETING"}, rec)
}

func TestSaveSession_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	require.Error(t, c.SaveSession(context.Background(), domain.StateRecord{}))

	c = mustNewClient(t, &fakeDynamo{putErr: errors.New("throttled")})
	err := c.SaveSession(context.Background(), sampleRecord())
	require.Error(t, err)
	require.Contains(t, err.Error(), "SaveSession")
}

func TestDeleteSession(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.DeleteSession(context.Background(), "6012"))
	require.Equal(t, "SESSION#6012", db.lastDelInput.Key["PK"].(*types.AttributeValueMemberS).Value)

	db.deleteErr = errors.New("boom")
	require.ErrorContains(t, c.DeleteSession(context.Background(), "6012"), "DeleteSession")
}

func TestAppendMessage(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)
	require.NoError(t, c.AppendMessage(context.Background(), "6012", domain.RoleUser, "Hi"))

	item := db.lastPutInput.Item
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *db.lastPutInput.ConditionExpression)
	require.Equal(t, "SESSION#6012", item["PK"].(*types.AttributeValueMemberS).Value)
	require.True(t, strings.HasPrefix(item["SK"].(*types.AttributeValueMemberS).Value, "MSG#2026-02-25T10:00:00.000000000Z#"))
	require.Equal(t, "user", item["role"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "Hi", item["text"].(*types.AttributeValueMemberS).Value)
}

func TestAppendMessage_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	c := mustNewClient(t, db)
	err := c.AppendMessage(context.Background(), "6012", domain.RoleUser, "Hi")
	require.Error(t, err)
	require.Contains(t, err.Error(), "AppendMessage")
}

func TestGetHistory_ReordersDescendingResultsToChronological(t *testing.T) {
	db := &fakeDynamo{
		queryOut: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				makeMessageItem("MSG#2026-02-27T12:00:00Z#b", "assistant", "newer"),
				makeMessageItem("MSG#2026-02-27T11:00:00Z#a", "user", "older"),
			},
		},
	}
	c := mustNewClient(t, db)
	msgs, err := c.GetHistory(context.Background(), "6012", 20)
	require.NoError(t, err)
	require.Equal(t, "older", msgs[0].Text)
	require.Equal(t, "user", msgs[0].Role)
	require.Equal(t, "newer", msgs[1].Text)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.lastQueryIn.KeyConditionExpression)
	require.False(t, *db.lastQueryIn.ScanIndexForward)
	require.Equal(t, int32(20), *db.lastQueryIn.Limit)
}

func TestGetHistory_NoLimit(t *testing.T) {
	db := &fakeDynamo{queryOut: &dynamodb.QueryOutput{}}
	c := mustNewClient(t, db)
	msgs, err := c.GetHistory(context.Background(), "6012", 0)
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Nil(t, db.lastQueryIn.Limit)
}

func TestGetHistory_Errors(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")})
	_, err := c.GetHistory(context.Background(), "6012", 20)
	require.ErrorContains(t, err, "GetHistory")

	item := map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: "SESSION#6012"},
		"SK": &types.AttributeValueMemberS{Value: "MSG#ts"},
	}
	c = mustNewClient(t, &fakeDynamo{queryOut: &dynamodb.QueryOutput{Items: []map[string]types.AttributeValue{item}}})
	_, err = c.GetHistory(context.Background(), "6012", 20)
	require.ErrorContains(t, err, "text")
}

func TestMsgSKIsUniqueAndOrdered(t *testing.T) {
	ts := time.Date(2026, 2, 25, 10, 0, 0, 0, time.UTC)
	a, b := msgSK(ts), msgSK(ts)
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(a, "MSG#2026-02-25T10:00:00.000000000Z#"))
	require.Less(t, msgSK(ts), msgSK(ts.Add(time.Second)))
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, "test-table", 0)
	require.ErrorContains(t, err, "must not be nil")

	_, err = New(&fakeDynamo{}, " ", 0)
	require.ErrorContains(t, err, "must not be empty")

	c, err := New(&fakeDynamo{}, "t", 0)
	require.NoError(t, err)
	require.Equal(t, defaultSessionTTL, c.sessionTTL)
}
