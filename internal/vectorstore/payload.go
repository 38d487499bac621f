package vectorstore

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// Payload keys as stored in the backend.
const (
	KeyText        = "text"
	KeyFilePath    = "filepath"
	KeyChunkIndex  = "chunk_index"
	KeyTokenCount  = "token_count"
	KeyLanguage    = "language"
	KeyBranch      = "branch"
	KeyCommit      = "commit"
	KeyContentHash = "content_hash"
)

// Payload is the data stored alongside a vector. It carries enough to locate
// the original chunk: file path, chunk index, token count and text.
type Payload struct {
	Text        string `json:"text"`
	FilePath    string `json:"filepath"`
	ChunkIndex  int    `json:"chunk_index"`
	TokenCount  int    `json:"token_count"`
	Language    string `json:"language,omitempty"`
	Branch      string `json:"branch,omitempty"`
	Commit      string `json:"commit,omitempty"`
	ContentHash string `json:"content_hash,omitempty"`
}

// pointNamespace scopes PointID so IDs never collide with other UUIDv5 users.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/pavanjava/semantic-code-finder/chunk"))

// ContentHash returns the hex SHA-256 of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// PointID returns the deterministic record ID of a chunk. The same file path,
// index and text always yield the same ID.
func PointID(filePath string, chunkIndex int, text string) string {
	name := filePath + "|" + strconv.Itoa(chunkIndex) + "|" + ContentHash(text)
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}

func (p Payload) qdrantValues() map[string]*qdrant.Value {
	m := map[string]*qdrant.Value{
		KeyText:       qdrant.NewValueString(p.Text),
		KeyFilePath:   qdrant.NewValueString(p.FilePath),
		KeyChunkIndex: qdrant.NewValueInt(int64(p.ChunkIndex)),
		KeyTokenCount: qdrant.NewValueInt(int64(p.TokenCount)),
	}
	for k, v := range p.optional() {
		m[k] = qdrant.NewValueString(v)
	}
	return m
}

func payloadFromQdrant(values map[string]*qdrant.Value) Payload {
	return Payload{
		Text:        values[KeyText].GetStringValue(),
		FilePath:    values[KeyFilePath].GetStringValue(),
		ChunkIndex:  int(values[KeyChunkIndex].GetIntegerValue()),
		TokenCount:  int(values[KeyTokenCount].GetIntegerValue()),
		Language:    values[KeyLanguage].GetStringValue(),
		Branch:      values[KeyBranch].GetStringValue(),
		Commit:      values[KeyCommit].GetStringValue(),
		ContentHash: values[KeyContentHash].GetStringValue(),
	}
}

// stringMetadata flattens the payload for chromem, which stores strings only.
// Text travels as the document content.
func (p Payload) stringMetadata() map[string]string {
	m := map[string]string{
		KeyFilePath:   p.FilePath,
		KeyChunkIndex: strconv.Itoa(p.ChunkIndex),
		KeyTokenCount: strconv.Itoa(p.TokenCount),
	}
	for k, v := range p.optional() {
		m[k] = v
	}
	return m
}

func payloadFromStrings(content string, m map[string]string) Payload {
	index, _ := strconv.Atoi(m[KeyChunkIndex])
	tokens, _ := strconv.Atoi(m[KeyTokenCount])
	return Payload{
		Text:        content,
		FilePath:    m[KeyFilePath],
		ChunkIndex:  index,
		TokenCount:  tokens,
		Language:    m[KeyLanguage],
		Branch:      m[KeyBranch],
		Commit:      m[KeyCommit],
		ContentHash: m[KeyContentHash],
	}
}

func (p Payload) optional() map[string]string {
	m := make(map[string]string, 4)
	if p.Language != "" {
		m[KeyLanguage] = p.Language
	}
	if p.Branch != "" {
		m[KeyBranch] = p.Branch
	}
	if p.Commit != "" {
		m[KeyCommit] = p.Commit
	}
	if p.ContentHash != "" {
		m[KeyContentHash] = p.ContentHash
	}
	return m
}
