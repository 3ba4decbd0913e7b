package prefs

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"
)

// DynamoDB key layout. One item per profile.
const (
	pkPrefix     = "PREFS#"
	skOnboarding = "ONBOARDING"
)

// DynamoAPI is the subset of *dynamodb.Client used by DynamoStore.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

type onboardingItem struct {
	SuppressOnboarding bool   `dynamodbav:"suppressOnboarding"`
	UpdatedAt          string `dynamodbav:"updatedAt"`
}

// DynamoStore keeps the flag in a DynamoDB table shared across machines.
type DynamoStore struct {
	client    DynamoAPI
	tableName string
	profile   string
	now       func() time.Time
}

// Compile-time interface check.
var _ Store = (*DynamoStore)(nil)

// NewDynamoStore creates a DynamoStore for profile in tableName.
func NewDynamoStore(client DynamoAPI, tableName, profile string) *DynamoStore {
	if profile == "" {
		profile = "default"
	}
	return &DynamoStore{client: client, tableName: tableName, profile: profile, now: time.Now}
}

func (s *DynamoStore) key() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkPrefix + s.profile},
		"SK": &types.AttributeValueMemberS{Value: skOnboarding},
	}
}

func (s *DynamoStore) Load(ctx context.Context) (bool, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &s.tableName,
		Key:       s.key(),
	})
	if err != nil {
		return false, fmt.Errorf("GetItem PK=%s%s SK=%s: %w", pkPrefix, s.profile, skOnboarding, err)
	}
	if result.Item == nil {
		return false, nil
	}
	var item onboardingItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return false, fmt.Errorf("unmarshal prefs: %w", err)
	}
	return item.SuppressOnboarding, nil
}

func (s *DynamoStore) Save(ctx context.Context, suppressOnboarding bool) error {
	item, err := attributevalue.MarshalMap(onboardingItem{
		SuppressOnboarding: suppressOnboarding,
		UpdatedAt:          s.now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	for k, v := range s.key() {
		item[k] = v
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s%s SK=%s: %w", pkPrefix, s.profile, skOnboarding, err)
	}
	log.Debug().Str("table", s.tableName).Str("profile", s.profile).Bool("suppress_onboarding", suppressOnboarding).Msg("Saved preferences")
	return nil
}
