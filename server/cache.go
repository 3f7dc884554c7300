package server

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sync"

	"rental-pricer/models"
	"rental-pricer/services"
)

const maxCachedEvaluations = 1024

type cachedEvaluation struct {
	ev  *services.Evaluation
	err error
}

// evaluationCache memoizes evaluations. A key covers everything the result
// depends on: the dataset hash, every target field and every parameter.
type evaluationCache struct {
	mu      sync.Mutex
	entries map[string]cachedEvaluation
}

func newEvaluationCache() *evaluationCache {
	return &evaluationCache{entries: make(map[string]cachedEvaluation)}
}

func evaluationKey(datasetHash string, target models.Target, params models.Params, proposed *float64) string {
	b, _ := json.Marshal(struct {
		Dataset  string        `json:"d"`
		Target   models.Target `json:"t"`
		Params   models.Params `json:"p"`
		Proposed *float64      `json:"x"`
	}{datasetHash, target, params, proposed})
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func (c *evaluationCache) get(key string) (cachedEvaluation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	return e, ok
}

func (c *evaluationCache) put(key string, e cachedEvaluation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.entries) >= maxCachedEvaluations {
		c.entries = make(map[string]cachedEvaluation)
	}
	c.entries[key] = e
}
