package vectorstore

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/pavanjava/semantic-code-finder/internal/config"
)

// NewStore creates the Store selected by cfg.VectorStore.Provider:
//   - "qdrant" (default): QdrantStore, requires a running Qdrant server
//   - "chromem": embedded ChromemStore, persisted under ChromemPath
func NewStore(cfg *config.Config, logger *zap.Logger) (Store, error) {
	switch cfg.VectorStore.Provider {
	case "qdrant", "":
		distance, err := ParseDistance(cfg.Qdrant.Distance)
		if err != nil {
			return nil, err
		}
		return NewQdrantStore(QdrantConfig{
			Host:                    cfg.Qdrant.Host,
			Port:                    cfg.Qdrant.Port,
			APIKey:                  cfg.Qdrant.APIKey.Value(),
			UseTLS:                  cfg.Qdrant.UseTLS,
			VectorSize:              cfg.Qdrant.VectorSize,
			Distance:                distance,
			MaxRetries:              cfg.Qdrant.MaxRetries,
			RetryBackoff:            cfg.Qdrant.RetryBackoff.Duration(),
			MaxMessageSize:          cfg.Qdrant.MaxMessageSize,
			CircuitBreakerThreshold: cfg.Qdrant.CircuitBreakerThreshold,
		}, logger)

	case "chromem":
		return NewChromemStore(ChromemConfig{
			Path:       cfg.VectorStore.ChromemPath,
			Compress:   cfg.VectorStore.ChromemCompress,
			VectorSize: cfg.Qdrant.VectorSize,
		}, logger)

	default:
		return nil, fmt.Errorf("%w: unsupported vectorstore provider %q (supported: qdrant, chromem)",
			ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
