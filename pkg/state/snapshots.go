package state

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/AccelByte/extend-marketing-automation/pkg/audience"
	"github.com/AccelByte/extend-marketing-automation/pkg/rule"
	"github.com/go-redis/redis/v8"
)

// LocationAttribute is the attribute that places a customer in a location index.
const LocationAttribute = "location_id"

const stringTag = "s:"

const loadBatchSize = 200

// RedisSnapshotStore keeps one hash of attributes per customer plus set
// indexes per organization and per location.
//
// Hash values carry their kind: strings are prefixed with "s:", lists are JSON
// arrays and numbers are plain decimals so HINCRBYFLOAT can update them.
type RedisSnapshotStore struct {
	client *redis.Client
}

var _ audience.SnapshotLoader = (*RedisSnapshotStore)(nil)

func NewRedisSnapshotStore(client *redis.Client) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client}
}

func attributeKey(orgID, customerID string) string {
	return attributeKeyPrefix + orgID + ":" + customerID
}

func customersKey(orgID string) string {
	return customersKeyPrefix + orgID
}

func locationKey(orgID, locationID string) string {
	return locationKeyPrefix + orgID + ":" + locationID
}

// LoadSnapshots returns a snapshot per customer of the organization, limited
// to customers of the given locations when any are passed. Customers come back
// sorted by ID.
func (s *RedisSnapshotStore) LoadSnapshots(ctx context.Context, orgID string, locationIDs []string) ([]audience.Snapshot, error) {
	var ids []string
	var err error
	if len(locationIDs) > 0 {
		keys := make([]string, len(locationIDs))
		for i, loc := range locationIDs {
			keys[i] = locationKey(orgID, loc)
		}
		ids, err = s.client.SUnion(ctx, keys...).Result()
	} else {
		ids, err = s.client.SMembers(ctx, customersKey(orgID)).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list customers of %s: %w", orgID, err)
	}
	sort.Strings(ids)

	snapshots := make([]audience.Snapshot, 0, len(ids))
	for start := 0; start < len(ids); start += loadBatchSize {
		end := start + loadBatchSize
		if end > len(ids) {
			end = len(ids)
		}
		batch, err := s.loadBatch(ctx, orgID, ids[start:end])
		if err != nil {
			return nil, err
		}
		snapshots = append(snapshots, batch...)
	}
	return snapshots, nil
}

func (s *RedisSnapshotStore) loadBatch(ctx context.Context, orgID string, ids []string) ([]audience.Snapshot, error) {
	pipe := s.client.Pipeline()
	cmds := make([]*redis.StringStringMapCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, attributeKey(orgID, id))
	}
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load attributes: %w", err)
	}

	out := make([]audience.Snapshot, 0, len(ids))
	for i, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load attributes of %s: %w", ids[i], err)
		}
		out = append(out, audience.Snapshot{
			CustomerID:     ids[i],
			OrganizationID: orgID,
			Attributes:     parseAttributes(fields),
		})
	}
	return out, nil
}

// LoadSnapshot returns the current attributes of one customer. An unknown
// customer has no attributes.
func (s *RedisSnapshotStore) LoadSnapshot(ctx context.Context, orgID, customerID string) (rule.Attributes, error) {
	fields, err := s.client.HGetAll(ctx, attributeKey(orgID, customerID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load attributes of %s: %w", customerID, err)
	}
	return parseAttributes(fields), nil
}

// SetAttribute writes one attribute and registers the customer in the indexes.
func (s *RedisSnapshotStore) SetAttribute(ctx context.Context, orgID, customerID, name string, value rule.Value) error {
	encoded, err := encodeValue(value)
	if err != nil {
		return err
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, attributeKey(orgID, customerID), name, encoded)
		pipe.SAdd(ctx, customersKey(orgID), customerID)
		if name == LocationAttribute && !value.IsList {
			pipe.SAdd(ctx, locationKey(orgID, scalarText(value.Scalar)), customerID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set %s of %s: %w", name, customerID, err)
	}
	return nil
}

// IncrementAttribute adds delta to a numeric attribute and returns the new value.
func (s *RedisSnapshotStore) IncrementAttribute(ctx context.Context, orgID, customerID, name string, delta float64) (float64, error) {
	var incr *redis.FloatCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrByFloat(ctx, attributeKey(orgID, customerID), name, delta)
		pipe.SAdd(ctx, customersKey(orgID), customerID)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s of %s: %w", name, customerID, err)
	}
	return incr.Val(), nil
}

func encodeValue(v rule.Value) (string, error) {
	if v.IsList {
		data, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("failed to encode list attribute: %w", err)
		}
		return string(data), nil
	}
	if v.IsNumber() {
		return scalarText(v.Scalar), nil
	}
	return stringTag + v.Str, nil
}

// scalarText is the unquoted form of a scalar, as used in index keys.
func scalarText(s rule.Scalar) string {
	if s.IsNumber() {
		return strconv.FormatFloat(s.Num, 'f', -1, 64)
	}
	return s.Str
}

func parseAttributes(fields map[string]string) rule.Attributes {
	attrs := make(rule.Attributes, len(fields))
	for name, raw := range fields {
		attrs[name] = parseValue(raw)
	}
	return attrs
}

func parseValue(raw string) rule.Value {
	if strings.HasPrefix(raw, stringTag) {
		return rule.StringValue(strings.TrimPrefix(raw, stringTag))
	}
	if n, err := strconv.ParseFloat(raw, 64); err == nil {
		return rule.NumberValue(n)
	}
	if strings.HasPrefix(raw, "[") {
		var v rule.Value
		if err := json.Unmarshal([]byte(raw), &v); err == nil {
			return v
		}
	}
	return rule.StringValue(raw)
}
