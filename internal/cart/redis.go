package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/vasiliy-maslov/nexoshop/internal/money"
)

const DefaultTTL = 30 * 24 * time.Hour

// Connect opens a redis client from a redis:// URL and checks it is reachable.
func Connect(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// snapshot is the part of a line that does not change when quantities are merged.
type snapshot struct {
	UnitPrice    money.Money `json:"unit_price"`
	ProductName  string      `json:"product_name"`
	ProductImage string      `json:"product_image,omitempty"`
}

// redisStore keeps two hashes per user: product -> quantity and product -> snapshot.
// Quantities live in their own hash so merges are a single HINCRBY.
type redisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisStore(client redis.Cmdable, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &redisStore{client: client, ttl: ttl}
}

func quantityKey(userID uuid.UUID) string {
	return "cart:" + userID.String() + ":qty"
}

func itemsKey(userID uuid.UUID) string {
	return "cart:" + userID.String() + ":items"
}

func (s *redisStore) Lines(ctx context.Context, userID uuid.UUID) ([]Line, error) {
	var qtyCmd, itemsCmd *redis.MapStringStringCmd
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		qtyCmd = pipe.HGetAll(ctx, quantityKey(userID))
		itemsCmd = pipe.HGetAll(ctx, itemsKey(userID))
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("cart: failed to read cart for user %s: %w", userID, err)
	}

	quantities := qtyCmd.Val()
	items := itemsCmd.Val()

	lines := make([]Line, 0, len(quantities))
	for field, rawQty := range quantities {
		productID, err := uuid.FromString(field)
		if err != nil {
			return nil, fmt.Errorf("cart: corrupt product id %q: %w", field, err)
		}
		qty, err := strconv.Atoi(rawQty)
		if err != nil {
			return nil, fmt.Errorf("cart: corrupt quantity for product %s: %w", field, err)
		}

		var snap snapshot
		if raw, ok := items[field]; ok {
			if err := json.Unmarshal([]byte(raw), &snap); err != nil {
				return nil, fmt.Errorf("cart: corrupt snapshot for product %s: %w", field, err)
			}
		}

		lines = append(lines, Line{
			ProductID:    productID,
			Quantity:     qty,
			UnitPrice:    snap.UnitPrice,
			ProductName:  snap.ProductName,
			ProductImage: snap.ProductImage,
		})
	}

	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})

	return lines, nil
}

func (s *redisStore) Add(ctx context.Context, userID uuid.UUID, line Line) (Line, error) {
	if line.Quantity < 1 {
		return Line{}, ErrInvalidQuantity
	}

	data, err := json.Marshal(snapshot{
		UnitPrice:    line.UnitPrice,
		ProductName:  line.ProductName,
		ProductImage: line.ProductImage,
	})
	if err != nil {
		return Line{}, fmt.Errorf("cart: failed to encode snapshot: %w", err)
	}

	field := line.ProductID.String()
	var incr *redis.IntCmd
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.HIncrBy(ctx, quantityKey(userID), field, int64(line.Quantity))
		pipe.HSet(ctx, itemsKey(userID), field, string(data))
		pipe.Expire(ctx, quantityKey(userID), s.ttl)
		pipe.Expire(ctx, itemsKey(userID), s.ttl)
		return nil
	})
	if err != nil {
		return Line{}, fmt.Errorf("cart: failed to add product %s for user %s: %w", line.ProductID, userID, err)
	}

	line.Quantity = int(incr.Val())
	return line, nil
}

func (s *redisStore) SetQuantity(ctx context.Context, userID, productID uuid.UUID, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}

	exists, err := s.client.HExists(ctx, quantityKey(userID), productID.String()).Result()
	if err != nil {
		return fmt.Errorf("cart: failed to check product %s for user %s: %w", productID, userID, err)
	}
	if !exists {
		return ErrLineNotFound
	}

	if err := s.client.HSet(ctx, quantityKey(userID), productID.String(), quantity).Err(); err != nil {
		return fmt.Errorf("cart: failed to update quantity of product %s for user %s: %w", productID, userID, err)
	}
	return nil
}

func (s *redisStore) Remove(ctx context.Context, userID, productID uuid.UUID) error {
	var del *redis.IntCmd
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		del = pipe.HDel(ctx, quantityKey(userID), productID.String())
		pipe.HDel(ctx, itemsKey(userID), productID.String())
		return nil
	})
	if err != nil {
		return fmt.Errorf("cart: failed to remove product %s for user %s: %w", productID, userID, err)
	}
	if del.Val() == 0 {
		return ErrLineNotFound
	}
	return nil
}

func (s *redisStore) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, quantityKey(userID), itemsKey(userID)).Err(); err != nil {
		return fmt.Errorf("cart: failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}
