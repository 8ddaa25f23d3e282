package detect

import (
	"sync"

	"exhibit/logger"
)

// ModelLoader resolves model identifiers into live inference handles.
type ModelLoader interface {
	Classifier(modelID string) (ImageClassifier, error)
	ObjectModel(modelID string) (ObjectModel, error)
}

// slot names one cached handle. Each modality owns one slot, so switching the
// configured identifier for a modality replaces the old handle rather than
// accumulating a second one.
type slot struct {
	id     string
	handle interface{}
}

// ModelCache loads model handles lazily and shares them process-wide. Safe
// for concurrent use.
type ModelCache struct {
	mu     sync.Mutex
	loader ModelLoader
	slots  map[string]*slot
	loads  int
}

func NewModelCache(loader ModelLoader) *ModelCache {
	return &ModelCache{
		loader: loader,
		slots:  make(map[string]*slot),
	}
}

// Classifier returns the classifier cached under name, loading modelID on
// first use or when the identifier changed since the last call.
func (c *ModelCache) Classifier(name, modelID string) (ImageClassifier, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[name]; ok && s.id == modelID {
		if h, ok := s.handle.(ImageClassifier); ok {
			return h, nil
		}
	}
	if c.loader == nil {
		return nil, ErrNoBackend
	}
	logger.Debugf("loading classifier %s (%s)", modelID, name)
	h, err := c.loader.Classifier(modelID)
	if err != nil {
		return nil, err
	}
	c.slots[name] = &slot{id: modelID, handle: h}
	c.loads++
	return h, nil
}

// ObjectModel returns the object model cached under name, with the same
// load-once, reload-on-change behavior as Classifier.
func (c *ModelCache) ObjectModel(name, modelID string) (ObjectModel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if s, ok := c.slots[name]; ok && s.id == modelID {
		if h, ok := s.handle.(ObjectModel); ok {
			return h, nil
		}
	}
	if c.loader == nil {
		return nil, ErrNoBackend
	}
	logger.Debugf("loading object model %s (%s)", modelID, name)
	h, err := c.loader.ObjectModel(modelID)
	if err != nil {
		return nil, err
	}
	c.slots[name] = &slot{id: modelID, handle: h}
	c.loads++
	return h, nil
}

// Loads reports how many backend loads the cache has performed.
func (c *ModelCache) Loads() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loads
}

// Close releases every cached handle.
func (c *ModelCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.slots = make(map[string]*slot)
}
