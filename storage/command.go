package storage

import (
	"time"

	"github.com/google/uuid"

	"github.com/fulldump/inceptiontx/schema"
)

const (
	CommandCreateContainer = "create_container"
	CommandCreateIndex     = "create_index"
	CommandDropIndex       = "drop_index"
	CommandSetRule         = "set_rule"
	CommandDeleteRule      = "delete_rule"
	CommandCommit          = "commit"
)

// Command is one journal entry. Only the field matching Name is set.
type Command struct {
	Name      string `json:"name" msgpack:"name"`
	Uuid      string `json:"uuid" msgpack:"uuid"`
	Timestamp int64  `json:"timestamp" msgpack:"timestamp"`

	Container *containerPayload       `json:"container,omitempty" msgpack:"container,omitempty"`
	Index     *schema.IndexDefinition `json:"index,omitempty" msgpack:"index,omitempty"`
	Rule      *schema.Rule            `json:"rule,omitempty" msgpack:"rule,omitempty"`
	Commit    *commitPayload          `json:"commit,omitempty" msgpack:"commit,omitempty"`
}

func newCommand(name string) *Command {
	return &Command{
		Name:      name,
		Uuid:      uuid.NewString(),
		Timestamp: time.Now().UnixNano(),
	}
}

type containerPayload struct {
	ID   int32  `json:"id" msgpack:"id"`
	Name string `json:"name" msgpack:"name"`
}

// commitPayload is a committed batch with every identity already
// permanent and every value in stored form.
type commitPayload struct {
	TxID    string         `json:"tx_id" msgpack:"tx_id"`
	Records []recordChange `json:"records,omitempty" msgpack:"records,omitempty"`
	Indexes []*indexChange `json:"indexes,omitempty" msgpack:"indexes,omitempty"`
}

type recordChange struct {
	Kind string `json:"kind" msgpack:"kind"`
	RID  string `json:"rid" msgpack:"rid"`
	// Version is the one the change was made against, zero for creations.
	Version    int64          `json:"version" msgpack:"version"`
	Properties map[string]any `json:"properties,omitempty" msgpack:"properties,omitempty"`
}

type indexChange struct {
	Name    string      `json:"name" msgpack:"name"`
	Cleared bool        `json:"cleared,omitempty" msgpack:"cleared,omitempty"`
	Keys    []keyChange `json:"keys,omitempty" msgpack:"keys,omitempty"`
}

type keyChange struct {
	Key     any           `json:"key" msgpack:"key"`
	Changes []entryChange `json:"changes" msgpack:"changes"`
}

type entryChange struct {
	Operation string `json:"op" msgpack:"op"`
	Value     string `json:"value,omitempty" msgpack:"value,omitempty"`
}
