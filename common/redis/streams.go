package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// DefaultStreamMaxLen caps streams approximately so they do not grow unbounded.
const DefaultStreamMaxLen = 10000

// PublishToStream XADDs values to stream. Non-string values are stringified,
// composite values are JSON encoded.
func PublishToStream(ctx context.Context, client *redis.Client, stream string, values map[string]interface{}) (string, error) {
	streamValues := make(map[string]interface{}, len(values))
	for k, v := range values {
		var strValue string
		switch val := v.(type) {
		case string:
			strValue = val
		case []byte:
			strValue = string(val)
		case int:
			strValue = strconv.Itoa(val)
		case int64:
			strValue = strconv.FormatInt(val, 10)
		case float64:
			strValue = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			strValue = strconv.FormatBool(val)
		default:
			b, err := json.Marshal(v)
			if err != nil {
				return "", fmt.Errorf("failed to encode stream field %s: %w", k, err)
			}
			strValue = string(b)
		}
		streamValues[k] = strValue
	}

	return client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: DefaultStreamMaxLen,
		Approx: true,
		Values: streamValues,
	}).Result()
}

// PublishJSONToStream publishes data as a single JSON "data" field plus a unix timestamp.
func PublishJSONToStream(ctx context.Context, client *redis.Client, stream string, data interface{}) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return PublishToStream(ctx, client, stream, map[string]interface{}{
		"data":      string(b),
		"timestamp": time.Now().Unix(),
	})
}
