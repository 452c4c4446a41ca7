package appointments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/clinvia/booking-platform/pkg/logging"
)

const userIndex = "userId-index"

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(context.Context, *dynamodb.UpdateItemInput, ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Store persists appointment records to DynamoDB. Flag transitions are
// guarded with condition expressions so concurrent writers cannot undo a
// cancellation or re-open a settled payment.
type Store struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
}

// NewStore builds a store backed by the provided DynamoDB client.
func NewStore(client dynamoAPI, tableName string, logger *logging.Logger) *Store {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}

	return &Store{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// Create inserts a new active, unpaid appointment record.
func (s *Store) Create(ctx context.Context, appt *Appointment) error {
	if appt == nil {
		return errors.New("appointments: record cannot be nil")
	}
	if appt.ID == "" {
		return errors.New("appointments: record id required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	appt.Cancelled = false
	appt.Paid = false
	appt.CreatedAt = now
	appt.UpdatedAt = now

	item, err := attributevalue.MarshalMap(appt)
	if err != nil {
		return fmt.Errorf("appointments: failed to marshal record: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(appointmentId)"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return ErrAlreadyExists
		}
		return fmt.Errorf("appointments: failed to persist record: %w", err)
	}
	return nil
}

// Get fetches an appointment by ID.
func (s *Store) Get(ctx context.Context, appointmentID string) (*Appointment, error) {
	if appointmentID == "" {
		return nil, errors.New("appointments: appointmentID required")
	}
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch record: %w", err)
	}
	if out.Item == nil {
		return nil, ErrNotFound
	}

	var appt Appointment
	if err := attributevalue.UnmarshalMap(out.Item, &appt); err != nil {
		return nil, fmt.Errorf("appointments: failed to decode record: %w", err)
	}
	return &appt, nil
}

// ListByUser returns every appointment booked by the given user.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]*Appointment, error) {
	if userID == "" {
		return nil, errors.New("appointments: userID required")
	}
	out, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		IndexName:              aws.String(userIndex),
		KeyConditionExpression: aws.String("userId = :user"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":user": &types.AttributeValueMemberS{Value: userID},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to query by user: %w", err)
	}

	appts := make([]*Appointment, 0, len(out.Items))
	for _, item := range out.Items {
		var appt Appointment
		if err := attributevalue.UnmarshalMap(item, &appt); err != nil {
			return nil, fmt.Errorf("appointments: failed to decode record: %w", err)
		}
		appts = append(appts, &appt)
	}
	return appts, nil
}

// MarkCancelled flips the cancelled flag. The update is conditional on the
// record existing and being active, so a second cancel attempt fails with
// ErrAlreadyCancelled rather than silently succeeding.
func (s *Store) MarkCancelled(ctx context.Context, appointmentID string) error {
	if appointmentID == "" {
		return errors.New("appointments: appointmentID required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
		},
		UpdateExpression: aws.String("SET cancelled = :true, updatedAt = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":    &types.AttributeValueMemberBOOL{Value: true},
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(appointmentId) AND cancelled = :false"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return s.resolveConditionFailure(ctx, appointmentID)
		}
		return fmt.Errorf("appointments: failed to cancel %s: %w", appointmentID, err)
	}
	return nil
}

// MarkPaid flips the payment flag. Marking an already paid appointment is a
// no-op; marking a cancelled one fails with ErrAlreadyCancelled.
func (s *Store) MarkPaid(ctx context.Context, appointmentID string) error {
	if appointmentID == "" {
		return errors.New("appointments: appointmentID required")
	}
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"appointmentId": &types.AttributeValueMemberS{Value: appointmentID},
		},
		UpdateExpression: aws.String("SET payment = :true, updatedAt = :updated"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true":    &types.AttributeValueMemberBOOL{Value: true},
			":false":   &types.AttributeValueMemberBOOL{Value: false},
			":updated": &types.AttributeValueMemberS{Value: time.Now().UTC().Format(time.RFC3339Nano)},
		},
		ConditionExpression: aws.String("attribute_exists(appointmentId) AND cancelled = :false"),
	})
	if err != nil {
		if isConditionFailure(err) {
			return s.resolveConditionFailure(ctx, appointmentID)
		}
		return fmt.Errorf("appointments: failed to mark %s paid: %w", appointmentID, err)
	}
	return nil
}

// resolveConditionFailure reads the record back to tell a missing item apart
// from one that was cancelled.
func (s *Store) resolveConditionFailure(ctx context.Context, appointmentID string) error {
	appt, err := s.Get(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("appointments: failed to inspect %s after rejected update: %w", appointmentID, err)
	}
	if appt.Cancelled {
		return ErrAlreadyCancelled
	}
	return fmt.Errorf("appointments: update of %s rejected unexpectedly", appointmentID)
}

func isConditionFailure(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}
