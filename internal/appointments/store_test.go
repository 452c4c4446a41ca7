package appointments

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/clinvia/booking-platform/pkg/logging"
)

func TestStore_CreatePersistsActiveUnpaid(t *testing.T) {
	mock := &mockDynamo{}
	store := NewStore(mock, "appointments", logging.Default())

	appt := &Appointment{
		ID:       "appt-123",
		UserID:   "user-1",
		DoctorID: "doc-1",
		SlotDate: "2026-09-10",
		SlotTime: "09:00",
		Amount:   700,
		// stale flags must be reset on insert
		Cancelled: true,
		Paid:      true,
	}

	if err := store.Create(context.Background(), appt); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if mock.putInput == nil {
		t.Fatalf("expected PutItem to be called")
	}

	var stored Appointment
	if err := attributevalue.UnmarshalMap(mock.putInput.Item, &stored); err != nil {
		t.Fatalf("failed to unmarshal stored record: %v", err)
	}

	if stored.Cancelled || stored.Paid {
		t.Fatalf("expected fresh record to be active and unpaid, got %#v", stored)
	}
	if stored.CreatedAt == "" || stored.UpdatedAt == "" {
		t.Fatal("expected timestamps to be populated")
	}
	if stored.Amount != 700 {
		t.Fatalf("expected fee snapshot 700, got %d", stored.Amount)
	}

	if expr := mock.putInput.ConditionExpression; expr == nil || *expr != "attribute_not_exists(appointmentId)" {
		t.Fatalf("expected condition expression to prevent overwrites, got %v", expr)
	}
}

func TestStore_CreateDuplicateID(t *testing.T) {
	mock := &mockDynamo{putErr: &types.ConditionalCheckFailedException{}}
	store := NewStore(mock, "appointments", logging.Default())

	err := store.Create(context.Background(), &Appointment{ID: "appt-123"})
	if !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestStore_CreateNilRecord(t *testing.T) {
	store := NewStore(&mockDynamo{}, "appointments", logging.Default())
	if err := store.Create(context.Background(), nil); err == nil {
		t.Fatal("expected error when record is nil")
	}
}

func TestStore_Get_Success(t *testing.T) {
	mock := &mockDynamo{
		getOutput: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"appointmentId": &types.AttributeValueMemberS{Value: "appt-42"},
				"userId":        &types.AttributeValueMemberS{Value: "user-1"},
				"cancelled":     &types.AttributeValueMemberBOOL{Value: false},
				"payment":       &types.AttributeValueMemberBOOL{Value: true},
			},
		},
	}
	store := NewStore(mock, "appointments", logging.Default())

	appt, err := store.Get(context.Background(), "appt-42")
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if appt.ID != "appt-42" || !appt.Paid || appt.Cancelled {
		t.Fatalf("unexpected record: %#v", appt)
	}
}

func TestStore_Get_NotFound(t *testing.T) {
	mock := &mockDynamo{getOutput: &dynamodb.GetItemOutput{}}
	store := NewStore(mock, "appointments", logging.Default())

	_, err := store.Get(context.Background(), "appt-42")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_ListByUser_QueriesIndex(t *testing.T) {
	mock := &mockDynamo{
		queryOutput: &dynamodb.QueryOutput{
			Items: []map[string]types.AttributeValue{
				{"appointmentId": &types.AttributeValueMemberS{Value: "appt-1"}},
				{"appointmentId": &types.AttributeValueMemberS{Value: "appt-2"}},
			},
		},
	}
	store := NewStore(mock, "appointments", logging.Default())

	appts, err := store.ListByUser(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("ListByUser returned error: %v", err)
	}
	if len(appts) != 2 {
		t.Fatalf("expected 2 records, got %d", len(appts))
	}
	if idx := mock.queryInput.IndexName; idx == nil || *idx != userIndex {
		t.Fatalf("expected query against %s, got %v", userIndex, idx)
	}
}

func TestStore_MarkCancelled_GuardsActiveFlag(t *testing.T) {
	mock := &mockDynamo{}
	store := NewStore(mock, "appointments", logging.Default())

	if err := store.MarkCancelled(context.Background(), "appt-123"); err != nil {
		t.Fatalf("MarkCancelled returned error: %v", err)
	}

	if len(mock.updateInputs) != 1 {
		t.Fatalf("expected 1 update call, got %d", len(mock.updateInputs))
	}
	update := mock.updateInputs[0]
	if expr := update.ConditionExpression; expr == nil || !strings.Contains(*expr, "cancelled = :false") {
		t.Fatalf("expected active-only condition, got %v", expr)
	}
}

func TestStore_MarkCancelled_AlreadyCancelled(t *testing.T) {
	mock := &mockDynamo{
		updateErr: &types.ConditionalCheckFailedException{},
		getOutput: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"appointmentId": &types.AttributeValueMemberS{Value: "appt-123"},
				"cancelled":     &types.AttributeValueMemberBOOL{Value: true},
			},
		},
	}
	store := NewStore(mock, "appointments", logging.Default())

	err := store.MarkCancelled(context.Background(), "appt-123")
	if !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestStore_MarkCancelled_MissingRecord(t *testing.T) {
	mock := &mockDynamo{
		updateErr: &types.ConditionalCheckFailedException{},
		getOutput: &dynamodb.GetItemOutput{},
	}
	store := NewStore(mock, "appointments", logging.Default())

	err := store.MarkCancelled(context.Background(), "appt-404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_MarkPaid_RejectsCancelled(t *testing.T) {
	mock := &mockDynamo{
		updateErr: &types.ConditionalCheckFailedException{},
		getOutput: &dynamodb.GetItemOutput{
			Item: map[string]types.AttributeValue{
				"appointmentId": &types.AttributeValueMemberS{Value: "appt-123"},
				"cancelled":     &types.AttributeValueMemberBOOL{Value: true},
			},
		},
	}
	store := NewStore(mock, "appointments", logging.Default())

	err := store.MarkPaid(context.Background(), "appt-123")
	if !errors.Is(err, ErrAlreadyCancelled) {
		t.Fatalf("expected ErrAlreadyCancelled, got %v", err)
	}
}

func TestStore_MarkPaid_SetsPaymentFlag(t *testing.T) {
	mock := &mockDynamo{}
	store := NewStore(mock, "appointments", logging.Default())

	if err := store.MarkPaid(context.Background(), "appt-123"); err != nil {
		t.Fatalf("MarkPaid returned error: %v", err)
	}

	update := mock.updateInputs[0]
	if !strings.Contains(*update.UpdateExpression, "payment = :true") {
		t.Fatalf("expected payment flag update, got %s", *update.UpdateExpression)
	}
}

func TestStore_MarkPaid_PropagatesError(t *testing.T) {
	mock := &mockDynamo{updateErr: errors.New("dynamo failed")}
	store := NewStore(mock, "appointments", logging.Default())

	err := store.MarkPaid(context.Background(), "appt-123")
	if err == nil || !strings.Contains(err.Error(), "dynamo failed") {
		t.Fatalf("expected dynamo error, got %v", err)
	}
}

type mockDynamo struct {
	putInput     *dynamodb.PutItemInput
	putErr       error
	updateInputs []*dynamodb.UpdateItemInput
	updateErr    error
	getOutput    *dynamodb.GetItemOutput
	getErr       error
	queryInput   *dynamodb.QueryInput
	queryOutput  *dynamodb.QueryOutput
	queryErr     error
}

func (m *mockDynamo) PutItem(ctx context.Context, input *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	m.putInput = input
	if m.putErr != nil {
		return nil, m.putErr
	}
	return &dynamodb.PutItemOutput{}, nil
}

func (m *mockDynamo) UpdateItem(ctx context.Context, input *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	m.updateInputs = append(m.updateInputs, input)
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return &dynamodb.UpdateItemOutput{}, nil
}

func (m *mockDynamo) GetItem(ctx context.Context, input *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.getOutput == nil {
		return &dynamodb.GetItemOutput{}, nil
	}
	return m.getOutput, nil
}

func (m *mockDynamo) Query(ctx context.Context, input *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	m.queryInput = input
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	if m.queryOutput == nil {
		return &dynamodb.QueryOutput{}, nil
	}
	return m.queryOutput, nil
}
