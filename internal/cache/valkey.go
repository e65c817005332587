package cache

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValkeyClient caches BasicAuth lookups so the hot registration path
// does not hit the users table on every request.
type ValkeyClient struct {
	client       *redis.Client
	usersHashKey string
}

func NewValkeyClient() (*ValkeyClient, error) {
	addr := os.Getenv("VALKEY_ADDR")
	if addr == "" {
		addr = "localhost:6379"
	}

	password := os.Getenv("VALKEY_PASSWORD")
	usersHashKey := os.Getenv("VALKEY_USERS_HASH_KEY")
	if usersHashKey == "" {
		usersHashKey = "users:auth"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	return &ValkeyClient{client: rdb, usersHashKey: usersHashKey}, nil
}

func authField(email, passwordHash string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + passwordHash))
}

// GetUserIDByAuth returns the cached user id for an email/password-hash
// pair, or an error on a cache miss.
func (vc *ValkeyClient) GetUserIDByAuth(ctx context.Context, email, passwordHash string) (int64, error) {
	val, err := vc.client.HGet(ctx, vc.usersHashKey, authField(email, passwordHash)).Result()
	if err != nil {
		return 0, err
	}

	userID, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid cached user id: %w", err)
	}

	return userID, nil
}

// SetUserAuth stores a verified credential pair for subsequent requests.
func (vc *ValkeyClient) SetUserAuth(ctx context.Context, email, passwordHash string, userID int64) error {
	return vc.client.HSet(ctx, vc.usersHashKey, authField(email, passwordHash), strconv.FormatInt(userID, 10)).Err()
}

func (vc *ValkeyClient) Close() error {
	return vc.client.Close()
}
