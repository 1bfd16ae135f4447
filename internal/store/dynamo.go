package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/fpang/caption-wizard/internal/profile"
	"github.com/fpang/caption-wizard/internal/wizard"
)

// DynamoDB key constants for the single-table design.
const (
	sessionPrefix = "SESSION#"
	userPrefix    = "USER#"
	skWizard      = "WIZARD"
	skStep        = "STEP"
	skProfile     = "PROFILE"

	attrData = "data"
)

// DynamoAPI is the subset of the DynamoDB client the store uses.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

var _ DynamoAPI = (*dynamodb.Client)(nil)

// DynamoStore keeps wizard records and profiles in one DynamoDB table.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewDynamoStore creates a DynamoStore for the given table.
// The client should be initialized from the shared AWS config.
func NewDynamoStore(client DynamoAPI, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		now:       time.Now,
	}
}

func sessionPK(sessionID string) string { return sessionPrefix + sessionID }

// wizardItemKey maps a wizard storage key to its item key. A step key lives
// next to its record under the same partition.
func wizardItemKey(key string) (pk, sk string) {
	if base, ok := strings.CutSuffix(key, wizard.StepKey("")); ok {
		return sessionPK(base), skStep
	}
	return sessionPK(key), skWizard
}

func userPK(uid string) string { return userPrefix + uid }

func itemKey(pk, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pk},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

// putItem writes item under PK/SK. A positive ttl adds the expiresAt
// attribute.
func (s *DynamoStore) putItem(ctx context.Context, pk, sk string, item map[string]types.AttributeValue, ttl time.Duration) error {
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	if ttl > 0 {
		exp := s.now().Add(ttl).Unix()
		item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(exp, 10)}
	}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// getItem returns the raw item, or nil when it does not exist.
func (s *DynamoStore) getItem(ctx context.Context, pk, sk string) (map[string]types.AttributeValue, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return result.Item, nil
}

func (s *DynamoStore) deleteItem(ctx context.Context, pk, sk string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &s.tableName,
		Key:       itemKey(pk, sk),
	})
	if err != nil {
		return fmt.Errorf("DeleteItem PK=%s SK=%s: %w", pk, sk, err)
	}
	return nil
}

// --- Wizard storage ---

// Get returns the persisted wizard record for session key, or nil when the
// record does not exist or has no data attribute.
func (s *DynamoStore) Get(ctx context.Context, key string) ([]byte, error) {
	pk, sk := wizardItemKey(key)
	item, err := s.getItem(ctx, pk, sk)
	if err != nil {
		return nil, fmt.Errorf("get wizard %s: %w", key, err)
	}
	if item == nil {
		return nil, nil
	}
	data, ok := item[attrData].(*types.AttributeValueMemberS)
	if !ok {
		log.Warn().Str("sessionId", key).Msg("Wizard item has no data attribute")
		return nil, nil
	}
	return []byte(data.Value), nil
}

// Put stores data for session key and refreshes its TTL.
func (s *DynamoStore) Put(ctx context.Context, key string, data []byte) error {
	item := map[string]types.AttributeValue{
		attrData: &types.AttributeValueMemberS{Value: string(data)},
	}
	pk, sk := wizardItemKey(key)
	if err := s.putItem(ctx, pk, sk, item, SessionTTL); err != nil {
		return fmt.Errorf("put wizard %s: %w", key, err)
	}
	log.Debug().Str("sessionId", key).Int("bytes", len(data)).Msg("Wizard persisted to DynamoDB")
	return nil
}

// Delete removes the wizard record for session key.
func (s *DynamoStore) Delete(ctx context.Context, key string) error {
	pk, sk := wizardItemKey(key)
	if err := s.deleteItem(ctx, pk, sk); err != nil {
		return fmt.Errorf("delete wizard %s: %w", key, err)
	}
	return nil
}

// --- Profiles ---

func (s *DynamoStore) GetProfile(ctx context.Context, uid string) (*profile.UserProfile, error) {
	item, err := s.getItem(ctx, userPK(uid), skProfile)
	if err != nil {
		return nil, fmt.Errorf("get profile %s: %w", uid, err)
	}
	if item == nil {
		return nil, nil
	}
	var p profile.UserProfile
	if err := attributevalue.UnmarshalMap(item, &p); err != nil {
		return nil, fmt.Errorf("unmarshal profile %s: %w", uid, err)
	}
	p.UID = uid
	return &p, nil
}

func (s *DynamoStore) PutProfile(ctx context.Context, p *profile.UserProfile) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", p.UID, err)
	}
	if err := s.putItem(ctx, userPK(p.UID), skProfile, item, 0); err != nil {
		return fmt.Errorf("put profile %s: %w", p.UID, err)
	}
	log.Debug().Str("uid", p.UID).Str("plan", p.PlanType).Int("used", p.RequestsUsed).Msg("Profile persisted")
	return nil
}

// SwapProfile writes p only while the stored requests_used equals prevUsed, or
// when no profile exists yet. A failed condition maps to profile.ErrConflict.
func (s *DynamoStore) SwapProfile(ctx context.Context, p *profile.UserProfile, prevUsed int) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal profile %s: %w", p.UID, err)
	}
	item["PK"] = &types.AttributeValueMemberS{Value: userPK(p.UID)}
	item["SK"] = &types.AttributeValueMemberS{Value: skProfile}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK) OR requests_used = :prev"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":prev": &types.AttributeValueMemberN{Value: strconv.Itoa(prevUsed)},
		},
	})
	var ccf *types.ConditionalCheckFailedException
	if errors.As(err, &ccf) {
		log.Debug().Str("uid", p.UID).Int("prevUsed", prevUsed).Msg("Profile usage moved, swap rejected")
		return profile.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("swap profile %s: %w", p.UID, err)
	}
	log.Debug().Str("uid", p.UID).Int("used", p.RequestsUsed).Msg("Profile swapped")
	return nil
}
