package transport

import (
	"context"
	"encoding/json"
	"time"

	"github.com/chhz0/dslproc/types"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// Publisher 广播分发结果
type Publisher interface {
	PublishResult(ctx context.Context, result *types.Result) error
	PublishReport(ctx context.Context, report *types.Report) error
	SubscribeResults(ctx context.Context) (<-chan *types.Result, error)
	Close() error
}

// 结果消息，附带发布节点
type envelope struct {
	NodeID string        `json:"node_id"`
	Result *types.Result `json:"result"`
}

// RedisPubSub 实现
type RedisPubSub struct {
	client        *redis.Client
	nodeID        string
	channelPrefix string
}

var ResultChannel = "results"

func NewRedisTransport(ctx context.Context, addr, password string, db int) (*RedisPubSub, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		PoolSize:     10,
		MinIdleConns: 2,
		IdleTimeout:  5 * time.Minute,
	})

	// 验证连接
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisPubSub{
		client:        client,
		nodeID:        uuid.New().String(),
		channelPrefix: "dslproc_",
	}, nil
}

func (rs *RedisPubSub) NodeID() string { return rs.nodeID }

func (rs *RedisPubSub) channel() string {
	return rs.channelPrefix + ResultChannel
}

func (rs *RedisPubSub) encode(result *types.Result) ([]byte, error) {
	return json.Marshal(envelope{NodeID: rs.nodeID, Result: result})
}

// 单条结果即时发布
func (rs *RedisPubSub) PublishResult(ctx context.Context, result *types.Result) error {
	data, err := rs.encode(result)
	if err != nil {
		return err
	}
	return rs.client.Publish(ctx, rs.channel(), data).Err()
}

// 整份报告按结果逐条发布，一次 pipeline 提交
func (rs *RedisPubSub) PublishReport(ctx context.Context, report *types.Report) error {
	pipe := rs.client.Pipeline()
	for i := range report.Results {
		data, err := rs.encode(&report.Results[i])
		if err != nil {
			return err
		}
		pipe.Publish(ctx, rs.channel(), data)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// 订阅结果流，ctx 结束时关闭通道
func (rs *RedisPubSub) SubscribeResults(ctx context.Context) (<-chan *types.Result, error) {
	pubsub := rs.client.Subscribe(ctx, rs.channel())
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, err
	}

	ch := make(chan *types.Result, 100)
	go func() {
		defer close(ch)
		defer pubsub.Close()

		msgs := pubsub.Channel()
		for {
			select {
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var env envelope
				if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil || env.Result == nil {
					continue
				}
				select {
				case ch <- env.Result:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch, nil
}

func (rs *RedisPubSub) Close() error {
	return rs.client.Close()
}
