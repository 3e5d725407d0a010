package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/mudler/xlog"

	"github.com/SargassoLLC/anemone/core/types"
)

const streamFilename = "memory_stream.jsonl"

const (
	defaultRetrievalCount      = 3
	defaultRecencyDecayRate    = 0.995
	defaultReflectionThreshold = 50.0
)

const importanceInstructions = `Rate the importance of the following memory on a scale of 1 to 10, where 1 is a purely mundane observation (routine idle thoughts, trivial environment details) and 10 is a highly significant event (a major realization, an important conversation, a completed goal). Respond with a single integer and nothing else.`

// LLM is the slice of the provider client the memory stream needs.
type LLM interface {
	ChatShort(ctx context.Context, input []types.Item, instructions string) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// Stream is an append-only memory ledger with three-factor retrieval
// (recency, importance, relevance), persisted as one JSON object per line.
type Stream struct {
	sync.Mutex

	path     string
	llm      LLM
	memories []types.Memory
	nextID   int

	importanceSum       float64
	retrievalCount      int
	recencyDecayRate    float64
	reflectionThreshold float64
}

type Option func(*Stream)

func WithRetrievalCount(n int) Option {
	return func(s *Stream) { s.retrievalCount = n }
}

func WithRecencyDecayRate(r float64) Option {
	return func(s *Stream) { s.recencyDecayRate = r }
}

func WithReflectionThreshold(t float64) Option {
	return func(s *Stream) { s.reflectionThreshold = t }
}

// New opens the memory stream under environmentPath, loading any
// existing ledger. Corrupt lines are skipped, never fatal.
func New(environmentPath string, llm LLM, opts ...Option) *Stream {
	s := &Stream{
		path:                filepath.Join(environmentPath, streamFilename),
		llm:                 llm,
		retrievalCount:      defaultRetrievalCount,
		recencyDecayRate:    defaultRecencyDecayRate,
		reflectionThreshold: defaultReflectionThreshold,
	}
	for _, o := range opts {
		o(s)
	}
	s.load()
	return s
}

func (s *Stream) load() {
	content, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			xlog.Error("Failed to load memory stream", "path", s.path, "error", err)
		}
		return
	}
	for _, line := range strings.Split(string(content), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		var mem types.Memory
		if err := json.Unmarshal([]byte(line), &mem); err != nil {
			xlog.Error("Failed to parse memory line", "error", err)
			continue
		}
		s.memories = append(s.memories, mem)
	}
	for _, mem := range s.memories {
		if n, ok := parseMemoryID(mem.ID); ok && n+1 > s.nextID {
			s.nextID = n + 1
		}
	}
	xlog.Info("Loaded memories from stream", "count", len(s.memories))
}

func parseMemoryID(id string) (int, bool) {
	num, ok := strings.CutPrefix(id, "m_")
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(num)
	if err != nil {
		return 0, false
	}
	return n, true
}

// scoreImportance asks the model for a 1-10 rating. Any failure or
// unparseable reply falls back to the midpoint.
func (s *Stream) scoreImportance(ctx context.Context, content string) int {
	input := []types.Item{{"role": "user", "content": content}}
	result, err := s.llm.ChatShort(ctx, input, importanceInstructions)
	if err != nil {
		xlog.Error("Importance scoring failed", "error", err)
		return 5
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, result)
	n, err := strconv.Atoi(digits)
	if err != nil {
		return 5
	}
	return min(max(n, 1), 10)
}

// Add scores, embeds, and persists a new memory entry.
func (s *Stream) Add(ctx context.Context, content, kind string, depth int, references []string) (types.Memory, error) {
	importance := s.scoreImportance(ctx, content)

	embedding, err := s.llm.Embed(ctx, content)
	if err != nil {
		xlog.Error("Embedding failed", "error", err)
		embedding = nil
	}

	s.Lock()
	defer s.Unlock()

	entry := types.Memory{
		ID:         fmt.Sprintf("m_%04d", s.nextID),
		Timestamp:  time.Now().UTC(),
		Kind:       kind,
		Content:    content,
		Importance: importance,
		Depth:      depth,
		References: references,
		Embedding:  embedding,
	}

	s.memories = append(s.memories, entry)
	s.nextID++
	s.importanceSum += float64(importance)

	if err := s.appendToFile(entry); err != nil {
		xlog.Error("Failed to write memory", "error", err)
	}

	xlog.Info("Memory stored", "id", entry.ID, "importance", importance, "kind", kind)
	return entry, nil
}

func (s *Stream) appendToFile(entry types.Memory) error {
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	line, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(line))
	return err
}

// Retrieve ranks all memories by recency + importance + relevance
// against the query and returns the top k. The query is embedded with
// a fresh model call; if that fails the most recent memories win.
func (s *Stream) Retrieve(ctx context.Context, query string, topK int) []types.Memory {
	s.Lock()
	empty := len(s.memories) == 0
	s.Unlock()
	if empty {
		return nil
	}
	if topK <= 0 {
		topK = s.retrievalCount
	}

	queryEmbedding, err := s.llm.Embed(ctx, query)
	if err != nil {
		xlog.Error("Query embedding failed", "error", err)
		return s.GetRecent(topK, "")
	}

	s.Lock()
	defer s.Unlock()
	return s.rank(topK, func(mem types.Memory) float64 {
		if len(mem.Embedding) == 0 || len(queryEmbedding) == 0 {
			return 0
		}
		return cosineSim(queryEmbedding, mem.Embedding)
	})
}

// RetrieveSync ranks by recency + importance only, with no model call.
func (s *Stream) RetrieveSync(topK int) []types.Memory {
	s.Lock()
	defer s.Unlock()
	if len(s.memories) == 0 {
		return nil
	}
	if topK <= 0 {
		topK = s.retrievalCount
	}
	return s.rank(topK, func(types.Memory) float64 { return 0 })
}

// rank is called with the lock held.
func (s *Stream) rank(topK int, relevance func(types.Memory) float64) []types.Memory {
	now := time.Now().UTC()
	type scored struct {
		score float64
		mem   types.Memory
	}
	ranked := make([]scored, 0, len(s.memories))
	for _, mem := range s.memories {
		hoursAgo := now.Sub(mem.Timestamp).Hours()
		recency := math.Exp(-(1.0 - s.recencyDecayRate) * hoursAgo)
		importance := float64(mem.Importance) / 10.0
		ranked = append(ranked, scored{
			score: recency + importance + relevance(mem),
			mem:   mem,
		})
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score > ranked[j].score
	})
	if topK > len(ranked) {
		topK = len(ranked)
	}
	out := make([]types.Memory, 0, topK)
	for _, r := range ranked[:topK] {
		out = append(out, r.mem)
	}
	return out
}

// GetRecent returns the last n memories in insertion order,
// optionally filtered by kind.
func (s *Stream) GetRecent(n int, kind string) []types.Memory {
	s.Lock()
	defer s.Unlock()
	var filtered []types.Memory
	for _, mem := range s.memories {
		if kind == "" || mem.Kind == kind {
			filtered = append(filtered, mem)
		}
	}
	if n < len(filtered) {
		filtered = filtered[len(filtered)-n:]
	}
	return filtered
}

// ShouldReflect reports whether accumulated importance has crossed the
// reflection threshold since the last reset.
func (s *Stream) ShouldReflect() bool {
	s.Lock()
	defer s.Unlock()
	return s.importanceSum >= s.reflectionThreshold
}

func (s *Stream) ResetImportanceSum() {
	s.Lock()
	defer s.Unlock()
	s.importanceSum = 0
}

func (s *Stream) Len() int {
	s.Lock()
	defer s.Unlock()
	return len(s.memories)
}

func cosineSim(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
