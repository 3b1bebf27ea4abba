package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"

	"voting-ledger/models"
)

// chainFile is the on-disk form of one journal chain
type chainFile struct {
	Blocks []*models.Block `json:"blocks"`
}

// JSONStore keeps each chain in its own JSON file under basePath.
type JSONStore struct {
	basePath string
	mu       sync.RWMutex
	chains   map[string]*chainFile
}

var _ BlockStore = (*JSONStore)(nil)

func NewJSONStore(basePath string) (*JSONStore, error) {
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, errors.Wrap(err, "failed to create journal directory")
	}
	return &JSONStore{
		basePath: basePath,
		chains:   make(map[string]*chainFile),
	}, nil
}

func (s *JSONStore) SaveBlock(chain string, block *models.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainLocked(chain)
	if err != nil {
		return err
	}

	c.Blocks = append(c.Blocks, block)
	if err := s.writeChain(chain, c); err != nil {
		c.Blocks = c.Blocks[:len(c.Blocks)-1]
		return err
	}
	return nil
}

func (s *JSONStore) LoadChain(chain string) ([]*models.Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := s.chainLocked(chain)
	if err != nil {
		return nil, err
	}

	// callers get their own slice
	blocks := make([]*models.Block, len(c.Blocks))
	copy(blocks, c.Blocks)
	return blocks, nil
}

func (s *JSONStore) chainLocked(chain string) (*chainFile, error) {
	if c, ok := s.chains[chain]; ok {
		return c, nil
	}
	c, err := s.readChain(chain)
	if err != nil {
		return nil, err
	}
	s.chains[chain] = c
	return c, nil
}

func (s *JSONStore) path(chain string) string {
	return filepath.Join(s.basePath, fmt.Sprintf("%s_chain.json", chain))
}

func (s *JSONStore) readChain(chain string) (*chainFile, error) {
	data, err := os.ReadFile(s.path(chain))
	if err != nil {
		if os.IsNotExist(err) {
			return &chainFile{Blocks: make([]*models.Block, 0)}, nil
		}
		return nil, errors.Wrapf(err, "failed to read chain %s", chain)
	}

	var c chainFile
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal chain %s", chain)
	}
	return &c, nil
}

func (s *JSONStore) writeChain(chain string, c *chainFile) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return errors.Wrap(err, "failed to marshal chain")
	}

	// write to a temp file, then rename over the old chain
	path := s.path(chain)
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0o644); err != nil {
		return errors.Wrap(err, "failed to write chain file")
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Wrap(err, "failed to save chain file")
	}
	return nil
}
