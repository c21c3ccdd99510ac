package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fulldump/inceptiontx/database"
	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/storage"
	"github.com/fulldump/inceptiontx/transaction"
)

var (
	ErrorContainerNotFound = errors.New("container not found")
	ErrorRecordNotFound    = errors.New("record not found")
)

type Options struct {
	MaxHookPasses int
	Logger        *zap.SugaredLogger
}

var _ Servicer = (*Service)(nil)

type Service struct {
	db            *database.Database
	maxHookPasses int
	logger        *zap.SugaredLogger
}

func NewService(db *database.Database, options *Options) *Service {
	if options == nil {
		options = &Options{}
	}
	logger := options.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Service{
		db:            db,
		maxHookPasses: options.MaxHookPasses,
		logger:        logger,
	}
}

type Container struct {
	Name    string `json:"name"`
	Total   int    `json:"total"`
	Indexes int    `json:"indexes"`
	Rules   int    `json:"rules"`
}

func (s *Service) container(name string) (*Container, error) {
	total, found := s.db.Storage.Count(name)
	if !found {
		return nil, ErrorContainerNotFound
	}
	return &Container{
		Name:    name,
		Total:   total,
		Indexes: len(s.db.Registry.Indexes(name)),
		Rules:   len(s.db.Registry.Rules(name)),
	}, nil
}

func (s *Service) CreateContainer(ctx context.Context, name string) (*Container, error) {
	if _, err := s.db.CreateContainer(ctx, name); err != nil {
		return nil, err
	}
	s.logger.Infow("container created", "container", name)
	return s.container(name)
}

func (s *Service) GetContainer(name string) (*Container, error) {
	return s.container(name)
}

func (s *Service) ContainerID(name string) (int32, error) {
	id, found := s.db.Storage.ContainerID(name)
	if !found {
		return 0, ErrorContainerNotFound
	}
	return id, nil
}

func (s *Service) ListContainers() []*Container {
	result := []*Container{}
	for _, name := range s.db.Storage.Containers() {
		c, err := s.container(name)
		if err != nil {
			continue
		}
		result = append(result, c)
	}
	return result
}

func (s *Service) CreateIndex(ctx context.Context, def *schema.IndexDefinition) error {
	if _, found := s.db.Storage.ContainerID(def.Container); !found {
		return ErrorContainerNotFound
	}
	if err := s.db.CreateIndex(ctx, def); err != nil {
		return err
	}
	s.logger.Infow("index created", "index", def.String())
	return nil
}

func (s *Service) ListIndexes(container string) ([]*schema.IndexDefinition, error) {
	if _, found := s.db.Storage.ContainerID(container); !found {
		return nil, ErrorContainerNotFound
	}
	return s.db.Registry.Indexes(container), nil
}

func (s *Service) DropIndex(ctx context.Context, name string) error {
	return s.db.DropIndex(ctx, name)
}

func (s *Service) SetRule(ctx context.Context, rule *schema.Rule) error {
	if _, found := s.db.Storage.ContainerID(rule.Container); !found {
		return ErrorContainerNotFound
	}
	return s.db.SetRule(ctx, rule)
}

func (s *Service) ListRules(container string) ([]*schema.Rule, error) {
	if _, found := s.db.Storage.ContainerID(container); !found {
		return nil, ErrorContainerNotFound
	}
	return s.db.Registry.Rules(container), nil
}

func (s *Service) DeleteRule(ctx context.Context, container, name string) error {
	return s.db.DeleteRule(ctx, container, name)
}

// Get reads a committed record outside of any session.
func (s *Service) Get(ctx context.Context, rid record.RID) (*record.Record, error) {
	rec, err := s.db.Storage.Load(ctx, rid)
	if errors.Is(err, storage.ErrRecordNotFound) {
		return nil, fmt.Errorf("%s: %w", rid, ErrorRecordNotFound)
	}
	return rec, err
}

// Lookup reads the committed records stored under key in an index.
func (s *Service) Lookup(ctx context.Context, index string, key any) ([]*record.Record, error) {
	rids, err := s.db.Storage.Lookup(index, key)
	if err != nil {
		return nil, err
	}
	result := make([]*record.Record, 0, len(rids))
	for _, rid := range rids {
		rec, err := s.db.Storage.Load(ctx, rid)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// NewSession opens a session with its own reusable transaction. hooks may
// be nil.
func (s *Service) NewSession(hooks transaction.Hooks) *Session {

	cache := newRecordCache()

	tx := transaction.New(&transaction.Options{
		Storage:       s.db.Storage,
		Hooks:         hooks,
		IndexManager:  s.db.Registry,
		Validator:     s.db.Registry,
		Caches:        []transaction.Cache{cache},
		Logger:        s.logger.Named("transaction"),
		MaxHookPasses: s.maxHookPasses,
	})

	session := &Session{
		service: s,
		tx:      tx,
		cache:   cache,
	}
	tx.OnCommit(session.committed)

	return session
}
