package service

import (
	"context"

	"github.com/fulldump/inceptiontx/record"
	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/transaction"
)

type Servicer interface {
	CreateContainer(ctx context.Context, name string) (*Container, error)
	GetContainer(name string) (*Container, error)
	ListContainers() []*Container
	ContainerID(name string) (int32, error)

	CreateIndex(ctx context.Context, def *schema.IndexDefinition) error
	ListIndexes(container string) ([]*schema.IndexDefinition, error)
	DropIndex(ctx context.Context, name string) error

	SetRule(ctx context.Context, rule *schema.Rule) error
	ListRules(container string) ([]*schema.Rule, error)
	DeleteRule(ctx context.Context, container, name string) error

	Get(ctx context.Context, rid record.RID) (*record.Record, error)
	Lookup(ctx context.Context, index string, key any) ([]*record.Record, error)

	NewSession(hooks transaction.Hooks) *Session
}
