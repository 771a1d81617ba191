package repository

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/redis/go-redis/v9"

	"github.com/taskgate/taskgate/pkg/config"
	"github.com/taskgate/taskgate/pkg/log"
)

// Provider owns the store connections. Writes go through the writer
// client and reads through the reader; when the configuration names a
// single endpoint one client serves both roles.
type Provider struct {
	writer *redis.Client
	reader *redis.Client
}

// NewProvider dials the writer and reader endpoints and verifies both
// with a ping. Any client opened before a failure is closed again, so
// a partially constructed provider never leaks connections.
func NewProvider(ctx context.Context, cfg *config.Config) (*Provider, error) {
	writerOpts, err := redis.ParseURL(cfg.RedisWriteURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis write url: %w", err)
	}
	writer := redis.NewClient(writerOpts)
	if err := writer.Ping(ctx).Err(); err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to reach redis writer: %w", err)
	}

	readURL := cfg.ReadURL()
	if readURL == cfg.RedisWriteURL {
		log.WithComponent("repository").Debug().
			Str("url", cfg.RedisWriteURL).
			Msg("Single store endpoint serves reads and writes")
		return &Provider{writer: writer, reader: writer}, nil
	}

	readerOpts, err := redis.ParseURL(readURL)
	if err != nil {
		writer.Close()
		return nil, fmt.Errorf("failed to parse redis read url: %w", err)
	}
	reader := redis.NewClient(readerOpts)
	if err := reader.Ping(ctx).Err(); err != nil {
		reader.Close()
		writer.Close()
		return nil, fmt.Errorf("failed to reach redis reader: %w", err)
	}

	return &Provider{writer: writer, reader: reader}, nil
}

// Writer returns the client used for mutations
func (p *Provider) Writer() *redis.Client {
	return p.writer
}

// Reader returns the client used for reads
func (p *Provider) Reader() *redis.Client {
	return p.reader
}

// DB returns the logical database number of the writer connection.
// The expiration listener needs it to build the notification pattern.
func (p *Provider) DB() int {
	return p.writer.Options().DB
}

// Ping verifies both connections
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.writer.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("writer: %w", err)
	}
	if err := p.reader.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("reader: %w", err)
	}
	return nil
}

// Close releases both clients
func (p *Provider) Close() error {
	var result *multierror.Error
	if err := p.writer.Close(); err != nil {
		result = multierror.Append(result, err)
	}
	if p.reader != p.writer {
		if err := p.reader.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
