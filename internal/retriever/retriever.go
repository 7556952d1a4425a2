// Package retriever serves the query compiler with relevant schema and
// business-rule context: an embeddings index over a curated knowledge
// document, with a static fallback so the compiler still functions when the
// embedding service or index is unavailable.
package retriever

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/binary"
	"encoding/hex"
	"math"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nordscout/prospector/pkg/embeddings"
)

//go:embed knowledge.md
var knowledgeDoc string

// Chunk is one retrieved knowledge-base passage.
type Chunk struct {
	Content    string
	Similarity float64
}

// Retriever answers top-k nearest-neighbor lookups over the knowledge base.
type Retriever struct {
	db       *sql.DB
	embedder embeddings.Client

	mu      sync.Mutex
	indexed bool
}

// New creates a Retriever over the shared local database.
func New(db *sql.DB, embedder embeddings.Client) *Retriever {
	return &Retriever{db: db, embedder: embedder}
}

// docHash identifies the current knowledge document content.
func docHash() string {
	sum := sha256.Sum256([]byte(knowledgeDoc))
	return hex.EncodeToString(sum[:])
}

// EnsureIndex lazily (re)builds the chunk index when the knowledge document
// changed. Rebuilding clears and replaces the full chunk set in one
// transaction, so repeated builds never duplicate entries.
func (r *Retriever) EnsureIndex(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	hash := docHash()
	if r.indexed {
		return nil
	}

	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM kb_chunks WHERE doc_hash = ?`, hash).Scan(&count)
	if err != nil {
		return eris.Wrap(err, "retriever: check index")
	}
	if count > 0 {
		r.indexed = true
		return nil
	}

	if _, err := r.rebuild(ctx, hash); err != nil {
		return err
	}
	r.indexed = true
	return nil
}

// Rebuild unconditionally re-embeds and replaces the chunk index, returning
// the number of chunks written.
func (r *Retriever) Rebuild(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	n, err := r.rebuild(ctx, docHash())
	if err != nil {
		return 0, err
	}
	r.indexed = true
	return n, nil
}

func (r *Retriever) rebuild(ctx context.Context, hash string) (int, error) {
	chunks := chunkDocument(knowledgeDoc)
	vectors, err := r.embedder.Embed(ctx, chunks)
	if err != nil {
		return 0, eris.Wrap(err, "retriever: embed chunks")
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "retriever: begin rebuild")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM kb_chunks`); err != nil {
		return 0, eris.Wrap(err, "retriever: clear index")
	}
	for i, chunk := range chunks {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO kb_chunks (id, doc_hash, seq, content, embedding) VALUES (?, ?, ?, ?, ?)`,
			uuid.New().String(), hash, i, chunk, encodeVector(vectors[i]),
		)
		if err != nil {
			return 0, eris.Wrap(err, "retriever: insert chunk")
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "retriever: commit rebuild")
	}

	zap.L().Info("retriever: index rebuilt",
		zap.Int("chunks", len(chunks)),
		zap.String("doc_hash", hash[:12]),
	)
	return len(chunks), nil
}

// Retrieve returns the k most similar knowledge chunks for the query text.
// k is clamped to [1, 5]. On any index or embedding failure it returns the
// static fallback context instead of an error — the compiler must still
// function, degraded.
func (r *Retriever) Retrieve(ctx context.Context, queryText string, k int) []Chunk {
	if k < 1 {
		k = 1
	}
	if k > 5 {
		k = 5
	}

	if err := r.EnsureIndex(ctx); err != nil {
		zap.L().Warn("retriever: index unavailable, using fallback context", zap.Error(err))
		return FallbackChunks()
	}

	queryVecs, err := r.embedder.Embed(ctx, []string{queryText})
	if err != nil || len(queryVecs) != 1 {
		zap.L().Warn("retriever: query embedding failed, using fallback context", zap.Error(err))
		return FallbackChunks()
	}
	queryVec := queryVecs[0]

	rows, err := r.db.QueryContext(ctx, `SELECT content, embedding FROM kb_chunks WHERE doc_hash = ? ORDER BY seq`, docHash())
	if err != nil {
		zap.L().Warn("retriever: load chunks failed, using fallback context", zap.Error(err))
		return FallbackChunks()
	}
	defer rows.Close()

	var scored []Chunk
	for rows.Next() {
		var content string
		var blob []byte
		if err := rows.Scan(&content, &blob); err != nil {
			continue
		}
		scored = append(scored, Chunk{
			Content:    content,
			Similarity: cosine(queryVec, decodeVector(blob)),
		})
	}
	if len(scored) == 0 {
		return FallbackChunks()
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Similarity > scored[j].Similarity
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored
}

// FallbackChunks is the fixed degraded context: the full schema and exclusion
// sections of the knowledge document, no similarity ranking.
func FallbackChunks() []Chunk {
	var out []Chunk
	for _, chunk := range chunkDocument(knowledgeDoc) {
		out = append(out, Chunk{Content: chunk})
		if len(out) == 4 {
			break
		}
	}
	return out
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
