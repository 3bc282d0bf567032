package subscribers_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/saloncore/booking-core/internal/catalog"
	"github.com/saloncore/booking-core/internal/repository"
	"github.com/saloncore/booking-core/internal/subscribers"
	"github.com/saloncore/booking-core/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

type EventHandlersTestSuite struct {
	suite.Suite
	redisClient *redis.Client
	handlers    *subscribers.NatsEventHandlers
	logger      *logger.Logger
}

func (s *EventHandlersTestSuite) SetupSuite() {
	s.logger = logger.New("debug")
	s.redisClient = redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	if err := s.redisClient.Ping(context.Background()).Err(); err != nil {
		s.T().Skipf("redis unavailable, skipping: %v", err)
	}

	cacheRepo := repository.NewCacheRepository(s.redisClient)
	cat := catalog.New(nil, cacheRepo, 60, s.logger)
	s.handlers = subscribers.NewNatsEventHandlers(cat, s.logger)
}

func (s *EventHandlersTestSuite) TearDownSuite() {
	if s.redisClient != nil {
		s.redisClient.Close()
	}
}

func (s *EventHandlersTestSuite) SetupTest() {
	s.redisClient.FlushDB(context.Background())
}

func (s *EventHandlersTestSuite) TestHandleCatalogInvalidated_ClearsCache() {
	ctx := context.Background()
	err := s.redisClient.Set(ctx, "catalog:services", `[{"id":"svc1"}]`, 0).Err()
	s.Require().NoError(err)

	payload := subscribers.CatalogInvalidatedPayload{Reason: "service_updated"}
	data, err := json.Marshal(payload)
	s.Require().NoError(err)

	err = s.handlers.HandleCatalogInvalidated(data)
	assert.NoError(s.T(), err)

	_, getErr := s.redisClient.Get(ctx, "catalog:services").Result()
	assert.ErrorIs(s.T(), getErr, redis.Nil)
}

func (s *EventHandlersTestSuite) TestHandleCatalogInvalidated_BadPayload() {
	err := s.handlers.HandleCatalogInvalidated([]byte("not json"))
	assert.Error(s.T(), err)
}

func TestEventHandlersTestSuite(t *testing.T) {
	suite.Run(t, new(EventHandlersTestSuite))
}
