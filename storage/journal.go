package storage

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"
)

// maxFrame protects replay from reading garbage as a huge length.
const maxFrame = 256 * 1024 * 1024

// Journal is an append-only file of length prefixed commands.
type Journal struct {
	Filename string

	codec  Codec
	sync   bool
	mu     sync.Mutex
	file   *os.File
	size   int64
	logger *zap.SugaredLogger
}

func OpenJournal(filename string, codec Codec, syncWrites bool, logger *zap.SugaredLogger) (*Journal, error) {

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0666)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("stat journal: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	return &Journal{
		Filename: filename,
		codec:    codec,
		sync:     syncWrites,
		file:     file,
		size:     info.Size(),
		logger:   logger,
	}, nil
}

func (j *Journal) Codec() Codec {
	return j.codec
}

// Append writes cmd. Failed writes are undone and retried a few times.
func (j *Journal) Append(ctx context.Context, cmd *Command) error {

	payload, err := j.codec.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("encode %s command: %w", cmd.Name, err)
	}

	frame := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[4:], payload)

	j.mu.Lock()
	defer j.mu.Unlock()

	backoff := retry.WithMaxRetries(3, retry.NewFibonacci(10*time.Millisecond))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		n, err := j.file.Write(frame)
		if err == nil && j.sync {
			err = j.file.Sync()
		}
		if err == nil {
			j.size += int64(n)
			return nil
		}
		j.logger.Warnw("journal write failed, will retry", "file", j.Filename, "command", cmd.Name, "err", err)
		if truncateErr := j.file.Truncate(j.size); truncateErr != nil {
			return fmt.Errorf("undo partial write: %w", truncateErr)
		}
		return retry.RetryableError(err)
	})
}

// Replay calls f for every command in order. A torn frame at the end of
// the file is cut off.
func (j *Journal) Replay(f func(cmd *Command) error) error {

	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.Filename)
	if err != nil {
		return fmt.Errorf("open journal for read: %w", err)
	}
	defer file.Close()

	reader := bufio.NewReaderSize(file, 1024*1024)
	header := make([]byte, 4)
	offset := int64(0)

	for {
		_, err := io.ReadFull(reader, header)
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return j.cut(offset, err)
		}

		size := binary.BigEndian.Uint32(header)
		if size > maxFrame {
			return j.cut(offset, fmt.Errorf("frame of %d bytes", size))
		}

		payload := make([]byte, size)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return j.cut(offset, err)
		}

		cmd := &Command{}
		if err := j.codec.Unmarshal(payload, cmd); err != nil {
			return fmt.Errorf("decode command at offset %d: %w", offset, err)
		}

		if err := f(cmd); err != nil {
			return fmt.Errorf("replay %s command %s: %w", cmd.Name, cmd.Uuid, err)
		}

		offset += int64(4 + size)
	}
}

func (j *Journal) cut(offset int64, cause error) error {
	if !errors.Is(cause, io.ErrUnexpectedEOF) && !errors.Is(cause, io.EOF) {
		return fmt.Errorf("read journal at offset %d: %w", offset, cause)
	}
	j.logger.Warnw("journal ends with a torn frame, cutting it off", "file", j.Filename, "offset", offset)
	if err := j.file.Truncate(offset); err != nil {
		return fmt.Errorf("truncate journal: %w", err)
	}
	j.size = offset
	return nil
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Close()
}
