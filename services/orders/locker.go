package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// SweepLocker garante que apenas uma réplica execute a varredura por vez
type SweepLocker interface {
	// Acquire tenta obter o lease; acquired=false significa que outra réplica o detém
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context), acquired bool, err error)
}

// NoopSweepLocker sempre concede o lease (instância única, sem Redis)
type NoopSweepLocker struct{}

func (NoopSweepLocker) Acquire(context.Context, string, time.Duration) (func(context.Context), bool, error) {
	return func(context.Context) {}, true, nil
}

// releaseScript só remove a chave se ela ainda pertencer a quem a criou
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSweepLocker implementa SweepLocker com SET NX PX
type RedisSweepLocker struct {
	client      redis.UniversalClient
	serviceName string
}

// NewRedisSweepLocker cria uma nova instância de RedisSweepLocker
func NewRedisSweepLocker(client redis.UniversalClient, serviceName string) *RedisSweepLocker {
	return &RedisSweepLocker{client: client, serviceName: serviceName}
}

func (l *RedisSweepLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context), bool, error) {
	lockKey := l.GenerateKey("lock", key)
	token := uuid.New().String()

	ok, err := l.client.SetNX(ctx, lockKey, token, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("failed to acquire lock %s: %w", lockKey, err)
	}
	if !ok {
		return nil, false, nil
	}

	release := func(ctx context.Context) {
		_ = releaseScript.Run(ctx, l.client, []string{lockKey}, token).Err()
	}
	return release, true, nil
}

// GenerateKey prefixa a chave com o nome do serviço
func (l *RedisSweepLocker) GenerateKey(operation, key string) string {
	return fmt.Sprintf("%s:%s:%s", l.serviceName, operation, key)
}
