package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/fulldump/inceptiontx/schema"
	"github.com/fulldump/inceptiontx/storage"
)

const (
	StatusOpening   = "opening"
	StatusOperating = "operating"
	StatusClosing   = "closing"
)

type Config struct {
	// Dir holds the journal, empty means memory only.
	Dir        string
	Codec      string
	SyncWrites bool
	Logger     *zap.SugaredLogger
}

type Database struct {
	Config   *Config
	Storage  *storage.Storage
	Registry *schema.Registry

	mu     sync.RWMutex
	status string
	exit   chan struct{}
	logger *zap.SugaredLogger
}

func NewDatabase(config *Config) *Database {
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Database{
		Config:   config,
		Registry: schema.NewRegistry(),
		status:   StatusOpening,
		exit:     make(chan struct{}),
		logger:   logger,
	}
}

func (db *Database) GetStatus() string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.status
}

func (db *Database) setStatus(status string) {
	db.mu.Lock()
	db.status = status
	db.mu.Unlock()
}

func (db *Database) journalFilename(codec storage.Codec) string {
	return filepath.Join(db.Config.Dir, "journal."+codec.Name())
}

// Load opens storage, replays the journal and registers the stored index
// definitions and rules.
func (db *Database) Load() error {

	t0 := time.Now()

	codec, err := storage.NewCodec(db.Config.Codec)
	if err != nil {
		db.setStatus(StatusClosing)
		return err
	}

	options := &storage.Options{
		Logger: db.logger.Named("storage"),
	}

	if db.Config.Dir != "" {
		db.logger.Infow("loading database", "dir", db.Config.Dir, "codec", codec.Name())
		if err := os.MkdirAll(db.Config.Dir, 0755); err != nil {
			db.setStatus(StatusClosing)
			return fmt.Errorf("create data dir: %w", err)
		}
		journal, err := storage.OpenJournal(db.journalFilename(codec), codec, db.Config.SyncWrites, db.logger.Named("journal"))
		if err != nil {
			db.setStatus(StatusClosing)
			return err
		}
		options.Journal = journal
	} else {
		db.logger.Infow("loading database in memory")
	}

	s, err := storage.Open(options)
	if err != nil {
		db.setStatus(StatusClosing)
		if options.Journal != nil {
			options.Journal.Close()
		}
		return err
	}

	for _, def := range s.IndexDefinitions() {
		if err := db.Registry.AddIndex(def); err != nil {
			db.setStatus(StatusClosing)
			return err
		}
	}
	for _, rule := range s.Rules() {
		if err := db.Registry.SetRule(rule); err != nil {
			db.setStatus(StatusClosing)
			return err
		}
	}

	db.Storage = s
	db.setStatus(StatusOperating)

	for _, name := range s.Containers() {
		count, _ := s.Count(name)
		db.logger.Infow("container loaded", "container", name, "records", count)
	}
	db.logger.Infow("database loaded", "elapsed", time.Since(t0).String())

	return nil
}

func (db *Database) Start() error {

	go func() {
		if err := db.Load(); err != nil {
			db.logger.Errorw("load database", "err", err)
		}
	}()

	<-db.exit

	return nil
}

func (db *Database) Stop() error {

	defer close(db.exit)

	db.setStatus(StatusClosing)

	if db.Storage == nil {
		return nil
	}

	db.logger.Infow("closing database")
	err := db.Storage.Close()
	if err != nil {
		db.logger.Errorw("close storage", "err", err)
	}

	return err
}

func (db *Database) CreateContainer(ctx context.Context, name string) (int32, error) {
	return db.Storage.CreateContainer(ctx, name)
}

// CreateIndex builds the index in storage and makes transactions maintain
// it from then on.
func (db *Database) CreateIndex(ctx context.Context, def *schema.IndexDefinition) error {
	if err := db.Storage.CreateIndex(ctx, def); err != nil {
		return err
	}
	return db.Registry.AddIndex(def)
}

func (db *Database) DropIndex(ctx context.Context, name string) error {
	if err := db.Storage.DropIndex(ctx, name); err != nil {
		return err
	}
	db.Registry.DropIndex(name)
	return nil
}

func (db *Database) SetRule(ctx context.Context, rule *schema.Rule) error {
	if err := db.Storage.SetRule(ctx, rule); err != nil {
		return err
	}
	return db.Registry.SetRule(rule)
}

func (db *Database) DeleteRule(ctx context.Context, container, name string) error {
	if err := db.Storage.DeleteRule(ctx, container, name); err != nil {
		return err
	}
	db.Registry.DeleteRule(container, name)
	return nil
}
